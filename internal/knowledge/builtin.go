package knowledge

var builtinInfo = map[string]PestInfo{
	"ants": {
		Name:        "Ants",
		Description: "Small insects that can damage plants by farming aphids or creating nests in plant roots",
		Symptoms: []string{
			"Presence of ant colonies near plants",
			"Aphid infestations",
			"Soil disturbance around roots",
		},
		Causes:   "Various ant species",
		Severity: "Low to Medium",
	},
	"bees": {
		Name:        "Bees",
		Description: "Generally beneficial insects that pollinate plants, rarely harmful",
		Symptoms: []string{
			"Presence of bees around flowering plants",
			"Hives near gardening areas",
		},
		Causes:   "Various bee species",
		Severity: "Low (generally beneficial)",
	},
	"beetle": {
		Name:        "Beetles",
		Description: "Various beetles can damage plants by feeding on leaves, stems, and roots",
		Symptoms: []string{
			"Holes in leaves",
			"Damaged stems",
			"Grubs in soil",
		},
		Causes:   "Various beetle species",
		Severity: "Medium to High",
	},
	"caterpillar": {
		Name:        "Caterpillars",
		Description: "Larval stage of butterflies and moths that feed on plant leaves",
		Symptoms: []string{
			"Irregular holes in leaves",
			"Chewed leaf edges",
			"Presence of frass (droppings)",
		},
		Causes:   "Larvae of Lepidoptera",
		Severity: "Medium to High",
	},
	"earthworms": {
		Name:        "Earthworms",
		Description: "Beneficial organisms that improve soil quality through aeration",
		Symptoms: []string{
			"Improved soil structure",
			"Worm castings on soil surface",
		},
		Causes:   "Various earthworm species",
		Severity: "Beneficial",
	},
	"earwig": {
		Name:        "Earwigs",
		Description: "Nocturnal insects that can damage young plants and seedlings",
		Symptoms: []string{
			"Irregular holes in leaves",
			"Damage to seedlings and soft fruits",
		},
		Causes:   "Various earwig species",
		Severity: "Low to Medium",
	},
	"grasshopper": {
		Name:        "Grasshoppers",
		Description: "Insects that can cause significant defoliation to plants",
		Symptoms: []string{
			"Ragged edges on leaves",
			"Large sections of missing foliage",
		},
		Causes:   "Various grasshopper species",
		Severity: "Medium to High",
	},
	"moth": {
		Name:        "Moths",
		Description: "Adult moths lay eggs that develop into destructive caterpillars",
		Symptoms: []string{
			"Presence of adult moths",
			"Caterpillar damage",
			"Silk webbing on plants",
		},
		Causes:   "Various moth species",
		Severity: "Medium (depends on species)",
	},
	"slug": {
		Name:        "Slugs",
		Description: "Slimy pests that feed on leaves and soft plant tissues",
		Symptoms: []string{
			"Irregular holes in leaves",
			"Slime trails on plants and soil",
			"Night feeding damage",
		},
		Causes:   "Various slug species",
		Severity: "Medium to High",
	},
	"snail": {
		Name:        "Snails",
		Description: "Similar to slugs but with shells, feeding on leaves and soft tissues",
		Symptoms: []string{
			"Irregular holes in leaves",
			"Slime trails",
			"Presence of shells",
		},
		Causes:   "Various snail species",
		Severity: "Medium",
	},
	"wasp": {
		Name:        "Wasps",
		Description: "Can be both beneficial as predators and harmful when nesting near plants",
		Symptoms: []string{
			"Presence of wasps around plants",
			"Wasp nests in garden areas",
		},
		Causes:   "Various wasp species",
		Severity: "Low (often beneficial)",
	},
	"weevil": {
		Name:        "Weevils",
		Description: "Small beetles with distinctive snouts that damage plants",
		Symptoms: []string{
			"Notched leaf edges",
			"Root damage",
			"Small holes in stems",
		},
		Causes:   "Various weevil species",
		Severity: "Medium to High",
	},
}

// Only ants and beetle have specific advice; other pests get the default.
var builtinTreatments = map[string]Treatment{
	"ants": {
		Prevention: []string{
			"Maintain clean garden areas",
			"Remove food sources",
			"Create barriers with diatomaceous earth",
		},
		Treatment: []string{
			"Natural ant baits",
			"Organic insecticides",
			"Boiling water for nests",
		},
		OrganicSolutions: []string{
			"Diatomaceous earth",
			"Cinnamon or cayenne pepper barriers",
			"Vinegar spray",
		},
	},
	"beetle": {
		Prevention: []string{
			"Crop rotation",
			"Row covers",
			"Companion planting",
		},
		Treatment: []string{
			"Neem oil spray",
			"Insecticidal soap",
			"Bacillus thuringiensis (Bt)",
		},
		OrganicSolutions: []string{
			"Handpicking",
			"Beneficial nematodes",
			"Garlic spray",
		},
	},
}
