package types

type Metric string

const (
	MetricTotalTokens         Metric = "total_tokens"
	MetricAvgTokensPerSession Metric = "avg_tokens_per_session"
	MetricErrorRate           Metric = "error_rate"
	MetricAvgDurationMS       Metric = "avg_duration_ms"
	MetricMaxDurationMS       Metric = "max_duration_ms"
	MetricSessionCount        Metric = "session_count"
	MetricEventCount          Metric = "event_count"
	MetricTokenRate           Metric = "token_rate"
)

func Metrics() []Metric {
	return []Metric{
		MetricTotalTokens,
		MetricAvgTokensPerSession,
		MetricErrorRate,
		MetricAvgDurationMS,
		MetricMaxDurationMS,
		MetricSessionCount,
		MetricEventCount,
		MetricTokenRate,
	}
}

func ValidMetric(m Metric) bool {
	for _, known := range Metrics() {
		if m == known {
			return true
		}
	}
	return false
}

type Operator string

const (
	OperatorLT Operator = "<"
	OperatorGT Operator = ">"
	OperatorLE Operator = "<="
	OperatorGE Operator = ">="
	OperatorEQ Operator = "=="
	OperatorNE Operator = "!="
)

func Operators() []Operator {
	return []Operator{OperatorLT, OperatorGT, OperatorLE, OperatorGE, OperatorEQ, OperatorNE}
}

func ValidOperator(op Operator) bool {
	for _, known := range Operators() {
		if op == known {
			return true
		}
	}
	return false
}

// Compare applies the operator with value on the left and threshold on
// the right. Equality is exact.
func (op Operator) Compare(value, threshold float64) bool {
	switch op {
	case OperatorLT:
		return value < threshold
	case OperatorGT:
		return value > threshold
	case OperatorLE:
		return value <= threshold
	case OperatorGE:
		return value >= threshold
	case OperatorEQ:
		return value == threshold
	case OperatorNE:
		return value != threshold
	default:
		return false
	}
}

type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeFired    Outcome = "fired"
	OutcomeCooldown Outcome = "cooldown"
	OutcomeError    Outcome = "error"
)
