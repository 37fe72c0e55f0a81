package derivation

import "github.com/shopspring/decimal"

// boreAxis is the discretised nominal bore axis (mm) shared by every table.
var boreAxis = []int{50, 80, 100, 150, 200, 250, 300, 350, 400, 450, 500, 600}

// pressureAxis is the discretised PN rating axis.
var pressureAxis = []int{16, 25, 40}

type boltCell struct {
	boltSize string
	holes    int
	weight   string
}

var boltTable = map[int]map[int]boltCell{
	50:  {16: {"M16", 4, "0.25"}, 25: {"M16", 4, "0.3"}, 40: {"M16", 4, "0.35"}},
	80:  {16: {"M16", 8, "0.25"}, 25: {"M16", 8, "0.3"}, 40: {"M20", 8, "0.5"}},
	100: {16: {"M16", 8, "0.3"}, 25: {"M20", 8, "0.5"}, 40: {"M20", 8, "0.6"}},
	150: {16: {"M20", 8, "0.5"}, 25: {"M20", 8, "0.6"}, 40: {"M24", 8, "0.9"}},
	200: {16: {"M20", 8, "0.6"}, 25: {"M20", 12, "0.7"}, 40: {"M24", 12, "1.0"}},
	250: {16: {"M20", 12, "0.7"}, 25: {"M24", 12, "1.0"}, 40: {"M27", 12, "1.3"}},
	300: {16: {"M20", 12, "0.8"}, 25: {"M24", 12, "1.1"}, 40: {"M27", 16, "1.5"}},
	350: {16: {"M20", 12, "0.9"}, 25: {"M24", 16, "1.2"}, 40: {"M30", 16, "1.8"}},
	400: {16: {"M24", 16, "1.0"}, 25: {"M27", 16, "1.4"}, 40: {"M30", 16, "2.0"}},
	450: {16: {"M24", 16, "1.1"}, 25: {"M27", 20, "1.5"}, 40: {"M33", 20, "2.3"}},
	500: {16: {"M24", 20, "1.2"}, 25: {"M30", 20, "1.7"}, 40: {"M33", 20, "2.5"}},
	600: {16: {"M27", 20, "1.4"}, 25: {"M30", 20, "1.9"}, 40: {"M36", 20, "3.0"}},
}

var defaultBoltCell = boltCell{"M20", 8, "0.5"}

// flangeWeightTable holds slip-on flange weights in kg.
var flangeWeightTable = map[int]map[int]string{
	50:  {16: "2.5", 25: "3.5", 40: "5.0"},
	80:  {16: "4.5", 25: "6.0", 40: "9.0"},
	100: {16: "6.0", 25: "8.5", 40: "13.0"},
	150: {16: "9.0", 25: "14.0", 40: "22.0"},
	200: {16: "13.0", 25: "20.0", 40: "32.0"},
	250: {16: "18.0", 25: "28.0", 40: "45.0"},
	300: {16: "24.0", 25: "38.0", 40: "62.0"},
	350: {16: "32.0", 25: "50.0", 40: "80.0"},
	400: {16: "42.0", 25: "65.0", 40: "105.0"},
	450: {16: "52.0", 25: "80.0", 40: "130.0"},
	500: {16: "65.0", 25: "100.0", 40: "160.0"},
	600: {16: "90.0", 25: "140.0", 40: "220.0"},
}

var defaultFlangeWeight = decimal.NewFromInt(10)

// pipeFlanges maps end configurations of straight pipes and bends to main flange counts.
var pipeFlanges = map[string]int{
	"PE":     0,
	"FOE":    1,
	"FBE":    2,
	"FOE_LF": 2,
	"FOE_RF": 2,
	"2X_RF":  2,
	"LF_BE":  4,
}

var fittingFlanges = map[string]FlangeCount{
	"PE":  {0, 0},
	"FAE": {2, 1},
	"FFF": {2, 1},
	"F2E": {2, 0},
	"FFP": {2, 0},
	"PFF": {1, 1},
	"PPF": {0, 1},
	"FPP": {1, 0},
	"PFP": {1, 0},
}
