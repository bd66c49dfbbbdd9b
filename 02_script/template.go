package script

import (
	"context"
	"math/rand"
	"strings"

	"github.com/synapsedaili/youtube-automation/types"
)

var shortsTemplates = []string{
	"What if you could travel back in time and witness {topic}?\n\n" +
		"In the Cold War era, engineers and dreamers sketched futures that never arrived. This was one of them, and it came closer to reality than most people know.\n\n" +
		"The idea was bold and the physics was real. The people behind it believed they could pull it off. So why did it vanish from history?\n\n" +
		"Money and politics played their part. But the plans survived, and they still raise a question: could we build it today?\n\n" +
		"{cta}",
	"This is the story of {topic}.\n\n" +
		"It started as a sketch on a blueprint at the height of the Cold War, when nothing seemed impossible and every superpower wanted the next breakthrough.\n\n" +
		"The engineers ran the numbers. The prototypes were drawn. Then the project quietly disappeared into an archive.\n\n" +
		"What happened, and what would our world look like if it had been finished?\n\n" +
		"{cta}",
	"Few people remember {topic}.\n\n" +
		"Yet for a moment it looked like the future. Declassified files show how seriously it was studied and how close it came to being built.\n\n" +
		"Then the money ran out and the world moved on.\n\n" +
		"Today it is one of the great lost futures of the twentieth century. Would you have backed it?\n\n" +
		"{cta}",
}

var podcastTemplates = []string{
	"Welcome to Synapse Daily. Today we dive deep into {topic}.\n\n" +
		"Imagine a world where the boldest ideas of the Cold War were not shelved but built. This episode is about one of those ideas, and about the people who fought to make it real.\n\n" +
		"It began in an era of enormous budgets and even bigger ambitions. Governments poured money into laboratories and design bureaus, and engineers were encouraged to think far beyond what seemed practical. Out of that climate came a plan that still sounds like science fiction.\n\n" +
		"The concept was simple to describe and fiendishly hard to execute. The early studies were promising. Calculations checked out, small scale tests worked, and for a while the project had powerful friends.\n\n" +
		"But the project faced enormous challenges. Treaties changed what was allowed. Political priorities shifted. Rival programs competed for the same money, and the public mood turned cautious.\n\n" +
		"What strikes me most about this story is how it captures a time when humanity dared to dream big. Today we are often limited by cost and caution. Back then, nothing seemed impossible.\n\n" +
		"The technology was proven on paper, yet politics decided its fate. The files were archived and the engineers moved on to other work.\n\n" +
		"So what if it had succeeded? The decades that followed could have unfolded very differently, and the future we live in today might look nothing like the one we know.\n\n" +
		"{cta} What forgotten project should we explore next?",
	"This is Synapse Daily, and tonight's story is {topic}.\n\n" +
		"Every era leaves behind two kinds of history. There is the history of what was built, and the quieter history of what almost was. Tonight belongs to the second kind.\n\n" +
		"To understand this project we have to go back to a world divided into two camps, each convinced that technology would decide who won. Scientists were treated like strategic assets, and no idea was too strange to study if it promised an edge.\n\n" +
		"The plan took shape in reports and sketches, then in test rigs and models. The people involved were serious and talented, and many of them believed they were working on the next great leap.\n\n" +
		"Then came the hard questions. How much would it really cost? Who would take the risk? What would happen if it went wrong? Each answer made the project a little harder to defend.\n\n" +
		"Looking back, it is easy to call it a fantasy. But the documents tell a different story, one of careful engineering that simply ran out of time and political will.\n\n" +
		"Maybe that is the real lesson. The future is not only shaped by what we can build, but by what we decide is worth building.\n\n" +
		"{cta} Tell us in the comments which lost future you want to hear about next.",
}

// TemplateStrategy fills a fixed template with the topic. It never fails.
// Intn picks the template index; nil uses the package-level random source.
type TemplateStrategy struct {
	Intn func(n int) int
}

func (TemplateStrategy) Name() string { return "template" }

func (t TemplateStrategy) Generate(_ context.Context, topic string, mode types.ModeProfile) (string, error) {
	pick := t.Intn
	if pick == nil {
		pick = rand.Intn
	}
	return renderTemplate(topic, mode, pick), nil
}

func Templates(mode types.Mode) []string {
	if mode == types.ModePodcast {
		return podcastTemplates
	}
	return shortsTemplates
}

// RenderTemplate fills a randomly chosen template for the mode.
func RenderTemplate(topic string, mode types.ModeProfile) string {
	return renderTemplate(topic, mode, rand.Intn)
}

func renderTemplate(topic string, mode types.ModeProfile, pick func(int) int) string {
	templates := Templates(mode.Mode)
	tpl := templates[pick(len(templates))]
	return strings.NewReplacer("{topic}", topic, "{cta}", mode.CallToAction).Replace(tpl)
}
