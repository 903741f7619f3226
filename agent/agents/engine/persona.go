package engine

import (
	"github.com/brianvoe/gofakeit/v7"

	statex "github.com/tanpawarit/drivethru-sim/agent/state"
)

var (
	Emotions = []string{
		"normal", "tired", "hungry", "rushed", "chill", "annoyed", "happy", "grumpy",
		"high", "drunk", "impatient", "distracted", "hangry", "quiet", "loud",
	}
	Tones = []string{
		"casual", "rude", "polite", "quiet", "loud", "friendly", "short", "confused",
		"sleepy", "rushed", "mumbling", "clear", "demanding", "chill",
	}
	Brevities = []string{
		"short", "normal", "long", "minimal", "chatty", "mumbled", "clear", "rushed",
	}
	QuestionTopics = []string{"menu items", "prices", "customization options", "specials"}
)

// Persona is the customer played for one run.
type Persona struct {
	Style         statex.Style
	Name          string
	QuestionTopic string
}

// NewPersona draws a persona from seed. Seed 0 picks a random one.
func NewPersona(seed uint64) Persona {
	faker := gofakeit.New(seed)
	return Persona{
		Style: statex.Style{
			Emotion: faker.RandomString(Emotions),
			Tone:    faker.RandomString(Tones),
			Brevity: faker.RandomString(Brevities),
		},
		Name:          faker.FirstName(),
		QuestionTopic: faker.RandomString(QuestionTopics),
	}
}
