package scoring_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/oppsuggest/internal/domain/model"
	scoring "github.com/okian/oppsuggest/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeChatter struct {
	reply    string
	err      error
	messages []scoring.Message
	system   string
	speed    scoring.Speed
}

func (f *fakeChatter) Chat(_ context.Context, messages []scoring.Message, systemPrompt string, speed scoring.Speed) (string, error) {
	f.messages = messages
	f.system = systemPrompt
	f.speed = speed
	return f.reply, f.err
}

func TestParseScore(t *testing.T) {
	Convey("Given model replies", t, func() {
		Convey("When the reply is a JSON object with a numeric score", func() {
			v, err := scoring.ParseScore(`{"id":"006","name":"Acme","score":0.82}`)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.82)
		})

		Convey("When the score is a numeric string", func() {
			v, err := scoring.ParseScore(`{"id":"006","name":"Acme","score":"0.4"}`)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.4)
		})

		Convey("When the reply is wrapped in a code fence", func() {
			v, err := scoring.ParseScore("```json\n{\"id\":\"1\",\"score\":0.3}\n```")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.3)
		})

		Convey("When the reply is a bare decimal", func() {
			v, err := scoring.ParseScore("  0.65\n")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.65)
		})

		Convey("When the score is out of range", func() {
			v, err := scoring.ParseScore("1.7")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 1.0)
		})

		Convey("When the reply cannot be parsed", func() {
			for _, reply := range []string{"", "the best match is Acme", `{"id":"1"}`, `{"score":"high"}`, `{"score":`, "NaN"} {
				_, err := scoring.ParseScore(reply)
				So(errors.Is(err, scoring.ErrUnparsableScore), ShouldBeTrue)
			}
		})
	})
}

func TestLLMScorer(t *testing.T) {
	Convey("Given an LLM scorer", t, func() {
		chat := &fakeChatter{reply: `{"id":"006","name":"Acme","score":0.9}`}
		scorer := scoring.NewLLMScorer(chat, scoring.WithSpeed(scoring.SpeedMedium))
		in := scoring.Input{
			Opportunity: model.Opportunity{ID: "006", Name: "Acme expansion", Stage: "Engaged"},
			Transcript:  "talking about firewalls",
			Products:    []model.Product{{ID: "p1", Name: "Firewall Appliance"}},
		}

		Convey("When the model replies with JSON", func() {
			res, err := scorer.Score(context.Background(), in)

			Convey("Then the parsed score is returned with the prompt contract honored", func() {
				So(err, ShouldBeNil)
				So(res.Score, ShouldEqual, 0.9)
				So(res.OpportunityID, ShouldEqual, "006")
				So(res.Strategy, ShouldEqual, scoring.StrategyLLM)
				So(res.Breakdown, ShouldBeNil)
				So(chat.speed, ShouldEqual, scoring.SpeedMedium)
				So(len(chat.messages), ShouldEqual, 1)
				So(chat.messages[0].Role, ShouldEqual, "user")
				So(chat.messages[0].Content, ShouldContainSubstring, "talking about firewalls")
				So(chat.system, ShouldContainSubstring, "Firewall Appliance")
				So(chat.system, ShouldContainSubstring, `"id":"006"`)
			})
		})

		Convey("When the model reply is unparsable", func() {
			chat.reply = "I think it's Acme"
			_, err := scorer.Score(context.Background(), in)

			Convey("Then it fails hard without a deterministic fallback", func() {
				So(errors.Is(err, scoring.ErrUnparsableScore), ShouldBeTrue)
				So(strings.Contains(err.Error(), "006"), ShouldBeTrue)
			})
		})

		Convey("When the chat call fails", func() {
			chat.err = errors.New("rate limited")
			_, err := scorer.Score(context.Background(), in)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "rate limited")
		})

		Convey("When no chat client is configured", func() {
			_, err := scoring.NewLLMScorer(nil).Score(context.Background(), in)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseSpeed(t *testing.T) {
	Convey("Given speed tier names", t, func() {
		s, err := scoring.ParseSpeed("SLOW")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, scoring.SpeedSlow)

		s, err = scoring.ParseSpeed("")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, scoring.SpeedFast)

		_, err = scoring.ParseSpeed("ludicrous")
		So(err, ShouldNotBeNil)
	})
}
