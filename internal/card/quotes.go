package card

// Caption pool printed at the foot of each ID card. Selection is by member
// index so a reprinted card carries the same caption.
var captions = []string{
	"Code the future.",
	"Innovate beyond limits.",
	"Build. Break. Repeat.",
	"AI is the new electricity.",
	"Think. Build. Lead.",
	"Dream big, code bigger.",
	"Hack today, lead tomorrow.",
	"Make it work, make it right, make it fast.",
	"Ship it, measure it, improve it.",
	"The best way to predict the future is to build it.",
	"Every line of code is a step towards excellence.",
	"Transform ideas into reality.",
}

func captionForIndex(i int) string {
	if i < 0 {
		i = -i
	}
	return captions[i%len(captions)]
}
