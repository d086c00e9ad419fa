package generator

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Text themes.
const (
	TextLorem    = "lorem"
	TextBusiness = "business"
	TextTech     = "tech"
	TextHipster  = "hipster"
	TextCats     = "cats"
	TextPup      = "pup"
)

var phraseLibraries = map[string][]string{
	TextLorem: {
		"Lorem ipsum dolor sit amet", "consectetur adipiscing elit",
		"Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua",
		"Ut enim ad minim veniam", "quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat",
		"Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur",
	},
	TextBusiness: {
		"Synergize core competencies", "Leverage key deliverables",
		"Drive innovation", "Scale vertical markets", "Engage stakeholders",
		"Optimize operational efficiencies", "Empower team collaboration",
		"Maximize ROI", "Pivot strategy", "Disrupt traditional paradigms",
	},
	TextTech: {
		"Implement RESTful APIs", "Build scalable microservices",
		"Leverage cloud computing", "Optimize for mobile-first design",
		"Integrate CI/CD pipelines", "Deploy on Kubernetes", "Debug production issues",
		"Write efficient algorithms", "Scale distributed systems", "Embrace open-source software",
	},
	TextHipster: {
		"Sip artisanal coffee", "Ride a fixie bike", "Wear vintage flannel",
		"Shop at farmers markets", "Brew craft beer", "Grow an urban garden",
		"Listen to indie vinyls", "Use a typewriter", "Attend pop-up galleries",
		"Advocate for slow food", "Explore hidden speakeasies", "Buy fair-trade avocado toast",
	},
	TextCats: {
		"Rub against legs", "Knock over a plant", "Play with dangling string",
		"Chase laser dot", "Sleep in cardboard box", "Bring dead mouse as a gift",
		"Attack invisible prey", "Hide under the bed", "Stare at the wall for no reason",
		"Purr meow", "Drink water from the faucet",
	},
	TextPup: {
		"Bark at the mailman", "Chase squirrels", "Play fetch",
		"Wag tail", "Dig holes", "Sniff hydrants", "Chew on bones",
		"Roll in the grass", "Pant happily", "Jump in puddles",
		"Beg for treats", "Run in circles", "Howl at sirens",
	},
}

var lengthWords = map[string]int{"short": 40, "medium": 100, "long": 200}

const minSentenceWords = 8

// TextTypes lists the supported themes.
func TextTypes() []string {
	return []string{TextLorem, TextBusiness, TextTech, TextHipster, TextCats, TextPup}
}

// WordBudget returns the paragraph word budget for length, defaulting to medium.
func WordBudget(length string) int {
	if n, ok := lengthWords[length]; ok {
		return n
	}
	return lengthWords["medium"]
}

// TextGenerator builds placeholder paragraphs from themed phrase libraries.
type TextGenerator struct {
	src *Source
}

func NewTextGenerator(src *Source) *TextGenerator {
	return &TextGenerator{src: src}
}

// Paragraphs returns count paragraphs of at most WordBudget(length) words.
// Unknown themes use lorem.
func (g *TextGenerator) Paragraphs(theme, length string, count int) []string {
	library, ok := phraseLibraries[theme]
	if !ok {
		library = phraseLibraries[TextLorem]
	}
	budget := WordBudget(length)

	out := make([]string, 0, count)
	for range count {
		out = append(out, g.paragraph(library, budget))
	}
	return out
}

func (g *TextGenerator) paragraph(library []string, budget int) string {
	var sentences []string
	var sentence []string
	words := 0
	for words < budget {
		phrase := Pick(g.src, library)
		n := len(strings.Fields(phrase))
		if words+n > budget {
			break
		}
		sentence = append(sentence, phrase)
		words += n
		if words >= minSentenceWords && g.src.Chance(0.5) {
			sentences = append(sentences, finishSentence(sentence))
			sentence = sentence[:0]
		}
	}
	if len(sentence) > 0 {
		sentences = append(sentences, finishSentence(sentence))
	}
	return strings.Join(sentences, " ")
}

// finishSentence upper-cases only the first rune so terms like "RESTful" keep their casing.
func finishSentence(phrases []string) string {
	s := strings.Join(phrases, " ")
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:] + "."
}
