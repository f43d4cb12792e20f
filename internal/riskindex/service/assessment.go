package service

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
)

// Scoring constants. These are deliberately code-level, not per-house
// configuration, so scores stay comparable across the whole tenant
// population.
const (
	baseScore    = 50
	lookbackDays = 60
	graceDays    = 3

	smoothingAlpha = 0.15

	multiplierFloor   = 0.85
	multiplierCeiling = 1.05

	paymentRateWeight   = 0.6
	participationWeight = 0.4
)

// chargeObservation is the slice of a charge the calculators need.
type chargeObservation struct {
	UserID  snowflake.ID
	Amount  int64
	Paid    bool
	DueDate time.Time
}

type riskAssessment struct {
	RiskFactor           float64
	WeightedUnpaidAmount float64
	TotalChargeAmount    int64
	UnpaidChargesCount   int
	UnpaidAmount         int64
	UsersWithUnpaid      int
	UsersWithCharges     int
	GroupRiskRatio       float64
	AverageDaysLate      float64
}

type trendAssessment struct {
	Factor                  float64
	Signal                  float64
	FirstHalfPaymentRate    float64
	SecondHalfPaymentRate   float64
	FirstHalfParticipation  float64
	SecondHalfParticipation float64
}

func neutralTrend() trendAssessment {
	return trendAssessment{Factor: 1.0}
}

// lateMultiplier escalates the weight of an unpaid charge with days past
// due. The grace boundary is inclusive: exactly graceDays late still
// weighs 1.0.
func lateMultiplier(daysPastDue int) float64 {
	switch {
	case daysPastDue <= graceDays:
		return 1.0
	case daysPastDue <= 7:
		return 1.2
	case daysPastDue <= 14:
		return 1.5
	case daysPastDue <= 30:
		return 2.0
	default:
		return 3.0
	}
}

func daysPastDue(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	return int(now.Sub(dueDate).Hours() / 24)
}

// assessCurrentRisk computes the time-weighted unpaid ratio over the
// lookback window. A house with no charges yields the zero assessment,
// which maps to a neutral score.
func assessCurrentRisk(charges []chargeObservation, now time.Time) riskAssessment {
	var out riskAssessment
	if len(charges) == 0 {
		return out
	}

	usersWithCharges := map[snowflake.ID]struct{}{}
	usersWithUnpaid := map[snowflake.ID]struct{}{}
	var lateDaysTotal int

	for _, c := range charges {
		usersWithCharges[c.UserID] = struct{}{}
		out.TotalChargeAmount += c.Amount
		if c.Paid {
			continue
		}
		usersWithUnpaid[c.UserID] = struct{}{}
		late := daysPastDue(c.DueDate, now)
		lateDaysTotal += late
		out.UnpaidChargesCount++
		out.UnpaidAmount += c.Amount
		out.WeightedUnpaidAmount += float64(c.Amount) * lateMultiplier(late)
	}

	out.UsersWithCharges = len(usersWithCharges)
	out.UsersWithUnpaid = len(usersWithUnpaid)
	if out.UsersWithCharges > 0 {
		out.GroupRiskRatio = float64(out.UsersWithUnpaid) / float64(out.UsersWithCharges)
	}
	if out.UnpaidChargesCount > 0 {
		out.AverageDaysLate = float64(lateDaysTotal) / float64(out.UnpaidChargesCount)
	}
	if out.TotalChargeAmount > 0 {
		out.RiskFactor = clampFloat(out.WeightedUnpaidAmount/float64(out.TotalChargeAmount), 0, 1)
	}
	return out
}

// assessTrend splits the window into two 30-day halves by due date and
// compares payment and participation rates. Either half empty means no
// usable history, so the trend stays neutral.
func assessTrend(charges []chargeObservation, now time.Time) trendAssessment {
	splitAt := now.AddDate(0, 0, -lookbackDays/2)

	var first, second []chargeObservation
	for _, c := range charges {
		if c.DueDate.Before(splitAt) {
			first = append(first, c)
		} else {
			second = append(second, c)
		}
	}
	if len(first) == 0 || len(second) == 0 {
		return neutralTrend()
	}

	firstPayment, firstParticipation := halfRates(first)
	secondPayment, secondParticipation := halfRates(second)

	signal := paymentRateWeight*(secondPayment-firstPayment) +
		participationWeight*(secondParticipation-firstParticipation)

	return trendAssessment{
		Factor:                  trendFactorFor(signal),
		Signal:                  signal,
		FirstHalfPaymentRate:    firstPayment,
		SecondHalfPaymentRate:   secondPayment,
		FirstHalfParticipation:  firstParticipation,
		SecondHalfParticipation: secondParticipation,
	}
}

func halfRates(charges []chargeObservation) (paymentRate, participationRate float64) {
	users := map[snowflake.ID]struct{}{}
	paidUsers := map[snowflake.ID]struct{}{}
	paid := 0
	for _, c := range charges {
		users[c.UserID] = struct{}{}
		if c.Paid {
			paid++
			paidUsers[c.UserID] = struct{}{}
		}
	}
	paymentRate = float64(paid) / float64(len(charges))
	participationRate = float64(len(paidUsers)) / float64(len(users))
	return paymentRate, participationRate
}

func trendFactorFor(signal float64) float64 {
	switch {
	case signal > 0.15:
		return 1.05
	case signal > 0.08:
		return 1.02
	case signal < -0.15:
		return 0.93
	case signal < -0.08:
		return 0.97
	default:
		return 1.0
	}
}

// riskToMultiplier maps the unpaid ratio onto a score multiplier,
// monotonically non-increasing in risk.
func riskToMultiplier(riskFactor float64) float64 {
	switch {
	case riskFactor <= 0.03:
		return 1.01
	case riskFactor <= 0.08:
		return 1.00
	case riskFactor <= 0.15:
		return 0.96
	case riskFactor <= 0.25:
		return 0.91
	case riskFactor <= 0.40:
		return 0.86
	default:
		return 0.82
	}
}

// riskMultiplierFor guards the no-data case: a house with nothing
// charged in the window stays fully neutral instead of collecting the
// low-risk reward bucket.
func riskMultiplierFor(a riskAssessment) float64 {
	if a.TotalChargeAmount == 0 {
		return 1.0
	}
	return riskToMultiplier(a.RiskFactor)
}

func finalMultiplier(riskMultiplier, trendFactor float64) float64 {
	return clampFloat(riskMultiplier*trendFactor, multiplierFloor, multiplierCeiling)
}

func measuredScore(multiplier float64) int {
	return clampScore(int(math.Round(baseScore * multiplier)))
}

// smoothScore applies the exponential moving average against the
// previously stored score.
func smoothScore(previous, measured int) int {
	smoothed := math.Round(smoothingAlpha*float64(measured) + (1-smoothingAlpha)*float64(previous))
	return clampScore(int(smoothed))
}

func deriveBracket(score int) int { return score / 10 }

func deriveFeeMultiplier(score int) float64 { return 1 + float64(baseScore-score)/250 }

func deriveCreditMultiplier(score int) float64 { return float64(score) / baseScore }

// snapshotTypeFor picks the retention class for a recomputation date:
// weekly, unless the date is the first Friday of its month, in which case
// monthly, or quarterly when that month closes a quarter.
func snapshotTypeFor(date time.Time) riskdomain.SnapshotType {
	if date.Weekday() != time.Friday || date.Day() > 7 {
		return riskdomain.SnapshotTypeWeekly
	}
	switch date.Month() {
	case time.March, time.June, time.September, time.December:
		return riskdomain.SnapshotTypeQuarterly
	default:
		return riskdomain.SnapshotTypeMonthly
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
