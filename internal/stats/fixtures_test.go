package stats

import (
	"github.com/uber/h3-go/v4"

	"github.com/sells-group/mobility-stats/internal/geo"
	"github.com/sells-group/mobility-stats/internal/record"
)

const tol = 1e-3

var (
	home = h3.NewLatLng(46.5197, 6.6323) // Lausanne
	work = h3.NewLatLng(46.2044, 6.1432) // Geneva

	zurichCell  = cellOf(h3.NewLatLng(47.3769, 8.5417), 5)
	newYorkCell = cellOf(h3.NewLatLng(40.7128, -74.0060), 4)
	workCell    = cellOf(work, 7)
)

func cellOf(ll h3.LatLng, res int) string {
	c, err := h3.LatLngToCell(ll, res)
	if err != nil {
		panic(err)
	}
	return c.String()
}

// edgeKM is the average hexagon edge length at res.
func edgeKM(res int) float64 {
	km, err := h3.HexagonEdgeLengthAvgKm(res)
	if err != nil {
		panic(err)
	}
	return km
}

// commuteKM is the home to work distance shared by every fixture row.
func commuteKM() float64 {
	return geo.GreatCircle(home.Lat, home.Lng, work.Lat, work.Lng)
}

func located(r record.Row) record.Row {
	r["data.origin.lat"] = home.Lat
	r["data.origin.lon"] = home.Lng
	r["data.workplace.lat"] = work.Lat
	r["data.workplace.lon"] = work.Lng
	return r
}

// fixture holds two legacy and two journey completed rows plus one
// legacy row without recommendation.
func fixture() record.Table {
	return record.Table{
		located(record.Row{
			"id":                             "L1",
			"data.freq_mod_car":              float64(3),
			"data.freq_mod_train":            float64(2),
			"data.freq_mod_pro_local_car":    float64(2),
			"data.freq_mod_pro_region_train": float64(1),
			"data.equipments.0":              "car_driver",
			"data.equipments.1":              "mob_subs",
			"data.constraints.0":             "night",
			"data.travel_time":               float64(20),
			"typo.reco.reco_dt2.0":           "covoit",
			"typo.reco_pro.reco_pro_loc":     "bike",
			"typo.reco_pro.reco_pro_reg":     "train",
		}),
		located(record.Row{
			"id":                   "L2",
			"data.freq_mod_car":    float64(3),
			"data.freq_mod_bike":   float64(0),
			"data.equipments.0":    "car_driver",
			"data.travel_time":     "20",
			"typo.reco.reco_dt2.0": "velo",
		}),
		located(record.Row{
			"id":                "L3",
			"data.freq_mod_car": float64(5),
		}),
		located(record.Row{
			"id":                                  "J1",
			"data.version":                        "2.1",
			"data.freq_mod_journeys.0.days":       float64(2),
			"data.freq_mod_journeys.0.modes.0":    "car",
			"data.freq_mod_journeys.0.modes.1":    "train",
			"data.freq_mod_journeys.1.days":       float64(3),
			"data.freq_mod_journeys.1.modes.0":    "bike",
			"data.freq_mod_pro_journeys.0.days":   float64(4),
			"data.freq_mod_pro_journeys.0.mode":   "plane",
			"data.freq_mod_pro_journeys.0.hex_id": newYorkCell,
			"data.freq_mod_pro_journeys.1.days":   float64(2),
			"data.freq_mod_pro_journeys.1.mode":   "car",
			"data.freq_mod_pro_journeys.1.hex_id": workCell,
			"data.equipments.0":                   "train_subs",
			"data.travel_time":                    float64(35),
			"typo.reco.reco_dt2.0":                "tpu",
			"typo.reco_pro.reco_pros.0":           "train",
			"typo.reco_pro.reco_pros.1":           "ebike",
		}),
		located(record.Row{
			"id":                                  "J2",
			"data.version":                        "2.0",
			"data.freq_mod_journeys.0.days":       float64(3),
			"data.freq_mod_journeys.0.modes.0":    "car",
			"data.freq_mod_journeys.0.modes.1":    "car",
			"data.freq_mod_pro_journeys.0.days":   float64(1),
			"data.freq_mod_pro_journeys.0.mode":   "train",
			"data.freq_mod_pro_journeys.0.hex_id": zurichCell,
			"data.freq_mod_pro_journeys.1.days":   float64(0),
			"data.freq_mod_pro_journeys.1.mode":   "car",
			"typo.reco.reco_dt2.0":                "covoit",
		}),
	}
}

func newTestEngine() *Engine {
	return NewEngine(DefaultParams())
}
