package suggestion

import (
	"testing"

	"github.com/okian/oppsuggest/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func ranks(vals ...float64) []model.RankedOpportunity {
	out := make([]model.RankedOpportunity, len(vals))
	for i, v := range vals {
		out[i] = model.RankedOpportunity{ID: string(rune('a' + i)), Rank: v}
	}
	return out
}

func suggestedCount(rs []model.RankedOpportunity) int {
	n := 0
	for _, r := range rs {
		if r.Suggested {
			n++
		}
	}
	return n
}

func TestSelect(t *testing.T) {
	Convey("Given the default thresholds", t, func() {
		Convey("When the top clears both gates", func() {
			out := Select(ranks(0.8, 0.5), DefaultMinScore, DefaultMargin)
			So(out[0].Rank, ShouldEqual, 0.8)
			So(out[0].Suggested, ShouldBeTrue)
			So(out[1].Suggested, ShouldBeFalse)
		})

		Convey("When the margin is too small", func() {
			out := Select(ranks(0.3, 0.28), DefaultMinScore, DefaultMargin)
			So(suggestedCount(out), ShouldEqual, 0)
		})

		Convey("When the input is empty", func() {
			So(Select([]model.RankedOpportunity{}, DefaultMinScore, DefaultMargin), ShouldBeEmpty)
			So(Select(nil, DefaultMinScore, DefaultMargin), ShouldBeNil)
		})

		Convey("When there is a single candidate", func() {
			out := Select(ranks(0.9), DefaultMinScore, DefaultMargin)
			So(out[0].Suggested, ShouldBeTrue)
		})

		Convey("When the single candidate is below the minimum", func() {
			out, d := Decide(ranks(0.2), DefaultMinScore, DefaultMargin)
			So(out[0].Suggested, ShouldBeFalse)
			So(d.Outcome, ShouldEqual, OutcomeBelowThreshold)
			So(d.Second, ShouldEqual, 0.0)
		})

		Convey("When the input is unsorted", func() {
			out, d := Decide(ranks(0.1, 0.7, 0.4), DefaultMinScore, DefaultMargin)
			So(out[0].ID, ShouldEqual, "b")
			So(out[1].ID, ShouldEqual, "c")
			So(out[2].ID, ShouldEqual, "a")
			So(out[0].Suggested, ShouldBeTrue)
			So(d.Outcome, ShouldEqual, OutcomeSuggested)
			So(d.Top, ShouldEqual, 0.7)
			So(d.Second, ShouldEqual, 0.4)
		})

		Convey("When the lead falls short of the margin by float error", func() {
			out, d := Decide(ranks(0.35, 0.25), DefaultMinScore, DefaultMargin)
			So(suggestedCount(out), ShouldEqual, 0)
			So(d.Outcome, ShouldEqual, OutcomeAmbiguous)
		})

		Convey("When the top sits just under the minimum", func() {
			out, d := Decide(ranks(0.2499999999), DefaultMinScore, DefaultMargin)
			So(out[0].Suggested, ShouldBeFalse)
			So(d.Outcome, ShouldEqual, OutcomeBelowThreshold)
		})

		Convey("When the lead equals the margin exactly", func() {
			out := Select(ranks(0.75, 0.25), DefaultMinScore, 0.5)
			So(out[0].Suggested, ShouldBeTrue)
		})

		Convey("When two records tie at the top and the margin is zero", func() {
			out := Select(ranks(0.6, 0.6, 0.1), DefaultMinScore, 0)
			Convey("Then every record equal to the top is suggested", func() {
				So(suggestedCount(out), ShouldEqual, 2)
				So(out[0].Suggested, ShouldBeTrue)
				So(out[1].Suggested, ShouldBeTrue)
				So(out[2].Suggested, ShouldBeFalse)
			})
		})

		Convey("When records arrive flagged from a previous call", func() {
			in := ranks(0.3, 0.29)
			in[1].Suggested = true
			out := Select(in, DefaultMinScore, DefaultMargin)
			So(suggestedCount(out), ShouldEqual, 0)
		})
	})
}

func TestPrefilter(t *testing.T) {
	Convey("Given ranked records", t, func() {
		in := ranks(0.9, 0.49, 0.5, 0.1)

		Convey("When pre-filtering at 0.5", func() {
			out := Prefilter(in, DefaultPrefilterMinScore)
			So(len(out), ShouldEqual, 2)
			So(out[0].ID, ShouldEqual, "a")
			So(out[1].ID, ShouldEqual, "c")
		})

		Convey("When nothing survives", func() {
			So(Prefilter(in, 0.95), ShouldBeEmpty)
		})
	})
}

func TestPolicy(t *testing.T) {
	Convey("Given a policy", t, func() {
		p := DefaultPolicy()
		So(p.Validate(), ShouldBeNil)

		Convey("When the pre-filter is off", func() {
			out, d, dropped := p.Apply(ranks(0.45, 0.2))
			So(dropped, ShouldEqual, 0)
			So(len(out), ShouldEqual, 2)
			So(out[0].Suggested, ShouldBeTrue)
			So(d.Outcome, ShouldEqual, OutcomeSuggested)
		})

		Convey("When the pre-filter is on the same input yields nothing", func() {
			p.PrefilterEnabled = true
			out, d, dropped := p.Apply(ranks(0.45, 0.2))
			So(dropped, ShouldEqual, 2)
			So(out, ShouldBeEmpty)
			So(d.Outcome, ShouldEqual, OutcomeEmpty)
		})

		Convey("When the pre-filter removes the runner-up the margin widens", func() {
			p.PrefilterEnabled = true
			out, _, dropped := p.Apply(ranks(0.55, 0.49))
			So(dropped, ShouldEqual, 1)
			So(out[0].Suggested, ShouldBeTrue)
		})

		Convey("When a threshold is out of range", func() {
			p.Margin = 1.5
			So(p.Validate(), ShouldNotBeNil)
		})
	})
}
