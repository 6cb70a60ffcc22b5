package stage

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGeneralTable(t *testing.T) {
	Convey("Given the general table", t, func() {
		tbl := NewGeneralTable()

		Convey("Then known labels resolve case-insensitively", func() {
			So(tbl.Weight("Engaged"), ShouldEqual, 1.0)
			So(tbl.Weight("ENGAGED"), ShouldEqual, 1.0)
			So(tbl.Weight("  proposal "), ShouldEqual, 0.9)
			So(tbl.Weight("Quote Follow-Up"), ShouldEqual, 0.85)
			So(tbl.Weight("Pending"), ShouldEqual, 0.7)
			So(tbl.Weight("Closed Lost"), ShouldEqual, 0.0)
		})

		Convey("Then unknown labels resolve to 0.5", func() {
			So(tbl.Weight("nonexistent-stage"), ShouldEqual, 0.5)
			So(tbl.Weight(""), ShouldEqual, 0.5)
			So(tbl.Default(), ShouldEqual, 0.5)
		})
	})
}

func TestPlatformTables(t *testing.T) {
	Convey("Given the platform tables", t, func() {
		Convey("Then salesforce shares text weights but defaults to 0.2", func() {
			tbl := NewSalesforceTable()
			So(tbl.Weight("Engaged"), ShouldEqual, 1.0)
			So(tbl.Weight("Finalizing"), ShouldEqual, 0.8)
			So(tbl.Weight("Prospecting"), ShouldEqual, 0.2)
		})

		Convey("Then pivotal resolves integer codes", func() {
			tbl := NewPivotalTable()
			So(tbl.WeightCode(0), ShouldEqual, 1.0)
			So(tbl.WeightCode(3), ShouldEqual, 0.4)
			So(tbl.Weight("2"), ShouldEqual, 0.3)
			So(tbl.WeightCode(9), ShouldEqual, 0.0)
		})

		Convey("Then acrm resolves BASE labels", func() {
			tbl := NewACRMTable()
			So(tbl.Weight("In Progress (BASE)"), ShouldEqual, 1.0)
			So(tbl.Weight("won (base)"), ShouldEqual, 0.9)
			So(tbl.Weight("Unknown"), ShouldEqual, 0.0)
		})
	})
}

func TestTableNormalization(t *testing.T) {
	Convey("Given a custom table with out-of-range values", t, func() {
		tbl := NewTable(" Custom ", map[string]float64{"Hot": 1.7, "Cold": -0.3}, 2)

		Convey("Then weights and default are clamped to [0,1]", func() {
			So(tbl.Name(), ShouldEqual, "custom")
			So(tbl.Weight("hot"), ShouldEqual, 1.0)
			So(tbl.Weight("cold"), ShouldEqual, 0.0)
			So(tbl.Default(), ShouldEqual, 1.0)
			So(tbl.Labels(), ShouldResemble, []string{"cold", "hot"})
		})

		Convey("When overriding", func() {
			def := 0.3
			next := tbl.With(map[string]float64{"HOT": 0.6, "warm": 0.5}, &def)

			Convey("Then the copy changes and the original does not", func() {
				So(next.Weight("hot"), ShouldEqual, 0.6)
				So(next.Weight("warm"), ShouldEqual, 0.5)
				So(next.Default(), ShouldEqual, 0.3)
				So(tbl.Weight("hot"), ShouldEqual, 1.0)
				So(tbl.Len(), ShouldEqual, 2)
			})
		})

		Convey("When an override differs from a built-in label only by case", func() {
			Convey("Then the override wins on every run", func() {
				for i := 0; i < 500; i++ {
					next := NewGeneralTable().With(map[string]float64{" Pending": 0.6}, nil)
					So(next.Weight("pending"), ShouldEqual, 0.6)
				}
			})
		})

		Convey("When two spellings of one label are given together", func() {
			Convey("Then the same spelling wins on every run", func() {
				for i := 0; i < 500; i++ {
					next := NewTable("t", map[string]float64{"Warm": 0.2, "warm": 0.4}, 0)
					So(next.Weight("WARM"), ShouldEqual, 0.4)
				}
			})
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given a registry", t, func() {
		r := NewRegistry()

		Convey("Then the built-in tables are present", func() {
			So(r.Names(), ShouldResemble, []string{ACRM, General, Pivotal, Salesforce})
			tbl, err := r.Get("SalesForce")
			So(err, ShouldBeNil)
			So(tbl.Default(), ShouldEqual, 0.2)
		})

		Convey("Then unknown tags fail with ErrUnknownTable", func() {
			_, err := r.Get("hubspot")
			So(errors.Is(err, ErrUnknownTable), ShouldBeTrue)
		})

		Convey("When overriding an existing table", func() {
			r.Override(General, map[string]float64{"pending": 0.6}, nil)
			tbl, _ := r.Get(General)
			So(tbl.Weight("pending"), ShouldEqual, 0.6)
			So(tbl.Default(), ShouldEqual, 0.5)
		})

		Convey("When overriding a missing table", func() {
			def := 0.1
			r.Override("hubspot", map[string]float64{"appointmentscheduled": 0.8}, &def)
			tbl, err := r.Get("hubspot")
			So(err, ShouldBeNil)
			So(tbl.Weight("AppointmentScheduled"), ShouldEqual, 0.8)
			So(tbl.Weight("closedwon"), ShouldEqual, 0.1)
		})

		Convey("When registering nil", func() {
			r.Register(nil)
			So(len(r.Names()), ShouldEqual, 4)
		})
	})
}
