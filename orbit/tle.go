package orbit

import (
	"strconv"
	"strings"

	"github.com/signalsfoundry/scenario-editor/model"
)

// tleLineLength is the fixed width of a NORAD element line.
const tleLineLength = 69

// TLE is a parsed two-line element set. Angles are in degrees.
type TLE struct {
	Name          string
	CatalogNumber int
	EpochYear     int
	EpochDay      float64

	InclinationDeg      float64
	RAANDeg             float64
	Eccentricity        float64
	ArgPerigeeDeg       float64
	MeanAnomalyDeg      float64
	MeanMotionRevPerDay float64
	BStar               float64

	Line1 string
	Line2 string
}

// ParseTLE parses a TLE as typed by the operator: two element lines,
// optionally preceded by a name line.
func ParseTLE(raw string) (*TLE, error) {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		l = strings.TrimRight(l, " \t\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	tle := &TLE{}
	switch len(lines) {
	case 2:
	case 3:
		tle.Name = strings.TrimSpace(lines[0])
		lines = lines[1:]
	default:
		return nil, model.NewValidationError("tle", "expected 2 element lines, got %d", len(lines))
	}
	tle.Line1, tle.Line2 = lines[0], lines[1]

	if err := checkLine(1, tle.Line1); err != nil {
		return nil, err
	}
	if err := checkLine(2, tle.Line2); err != nil {
		return nil, err
	}

	p := &columnParser{}
	cat1 := p.int(1, tle.Line1, 2, 7, "satellite number")
	tle.EpochYear = p.int(1, tle.Line1, 18, 20, "epoch year")
	tle.EpochDay = p.float(1, tle.Line1, 20, 32, "epoch day")
	p.float(1, tle.Line1, 33, 43, "first derivative of mean motion")
	p.implied(1, tle.Line1, 44, 52, "second derivative of mean motion")
	tle.BStar = p.implied(1, tle.Line1, 53, 61, "BSTAR drag term")

	cat2 := p.int(2, tle.Line2, 2, 7, "satellite number")
	tle.InclinationDeg = p.float(2, tle.Line2, 8, 16, "inclination")
	tle.RAANDeg = p.float(2, tle.Line2, 17, 25, "right ascension of ascending node")
	tle.Eccentricity = p.decimal(2, tle.Line2, 26, 33, "eccentricity")
	tle.ArgPerigeeDeg = p.float(2, tle.Line2, 34, 42, "argument of perigee")
	tle.MeanAnomalyDeg = p.float(2, tle.Line2, 43, 51, "mean anomaly")
	tle.MeanMotionRevPerDay = p.float(2, tle.Line2, 52, 63, "mean motion")
	if p.err != nil {
		return nil, p.err
	}

	if cat1 != cat2 {
		return nil, model.NewValidationError("tle", "satellite numbers differ between lines (%d vs %d)", cat1, cat2)
	}
	tle.CatalogNumber = cat1

	switch {
	case tle.MeanMotionRevPerDay <= 0:
		return nil, model.NewValidationError("tle", "mean motion must be positive")
	case tle.Eccentricity >= 1:
		return nil, model.NewValidationError("tle", "eccentricity must be below 1")
	case tle.InclinationDeg < 0 || tle.InclinationDeg > 180:
		return nil, model.NewValidationError("tle", "inclination must be within [0, 180] degrees")
	}
	return tle, nil
}

func checkLine(n int, line string) error {
	if len(line) < tleLineLength {
		return model.NewValidationError("tle", "line %d must be at least %d characters (got %d)", n, tleLineLength, len(line))
	}
	if want := strconv.Itoa(n) + " "; !strings.HasPrefix(line, want) {
		return model.NewValidationError("tle", "line %d must start with %q", n, want)
	}
	return nil
}

// columnParser reads fixed-width fields and keeps the first failure.
type columnParser struct {
	err error
}

func (p *columnParser) fail(line, from, to int, what, raw string) {
	if p.err == nil {
		p.err = model.NewValidationError("tle", "line %d columns %d-%d (%s): %q is not a number", line, from+1, to, what, raw)
	}
}

func (p *columnParser) int(line int, s string, from, to int, what string) int {
	raw := strings.TrimSpace(s[from:to])
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(line, from, to, what, raw)
	}
	return v
}

func (p *columnParser) float(line int, s string, from, to int, what string) float64 {
	raw := strings.TrimSpace(s[from:to])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(line, from, to, what, raw)
	}
	return v
}

// decimal reads a field with an implied leading decimal point ("0001817").
func (p *columnParser) decimal(line int, s string, from, to int, what string) float64 {
	raw := strings.TrimSpace(s[from:to])
	v, err := strconv.ParseFloat("0."+raw, 64)
	if err != nil || strings.ContainsAny(raw, "+-.") {
		p.fail(line, from, to, what, raw)
	}
	return v
}

// implied reads the packed exponential notation used by BSTAR and the
// second derivative: "-11606-4" is -0.11606e-4.
func (p *columnParser) implied(line int, s string, from, to int, what string) float64 {
	raw := strings.TrimSpace(s[from:to])
	if raw == "" {
		p.fail(line, from, to, what, raw)
		return 0
	}
	sign := ""
	body := raw
	if body[0] == '-' || body[0] == '+' {
		sign, body = body[:1], body[1:]
	}
	cut := strings.LastIndexAny(body, "+-")
	if cut <= 0 || cut == len(body)-1 {
		p.fail(line, from, to, what, raw)
		return 0
	}
	v, err := strconv.ParseFloat(sign+"0."+body[:cut]+"e"+body[cut:], 64)
	if err != nil {
		p.fail(line, from, to, what, raw)
	}
	return v
}
