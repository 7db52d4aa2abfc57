package pestnet

// NumClasses is the length of every classifier output vector.
const NumClasses = 12

// Labels maps output index to pest name. The order is fixed by training and
// must never change.
var Labels = [NumClasses]string{
	"ants",
	"bees",
	"beetle",
	"caterpillar",
	"earthworms",
	"earwig",
	"grasshopper",
	"moth",
	"slug",
	"snail",
	"wasp",
	"weevil",
}

// LabelIndex returns the output index of name, or -1.
func LabelIndex(name string) int {
	for i, l := range Labels {
		if l == name {
			return i
		}
	}
	return -1
}
