package validator

import "fmt"

// Builtins returns the stock validators every engine starts with:
// numeric_threshold, percentage, boolean, list_length.
func Builtins() []Validator {
	return []Validator{
		NumericThreshold{},
		Percentage{},
		Boolean{},
		ListLength{},
	}
}

// NumericThreshold passes when the metric meets or exceeds a numeric
// target.
type NumericThreshold struct{}

func (NumericThreshold) Name() string { return "numeric_threshold" }

func (NumericThreshold) Validate(target any, ctx Context) Result {
	if r, missing := missingMetric(ctx); missing {
		return r
	}

	want, ok := asFloat(target)
	if !ok {
		return Result{Passed: false, Message: fmt.Sprintf("target %v is not numeric", target)}
	}
	actual, ok := asFloat(ctx.Metrics[ctx.MetricName])
	if !ok {
		return Result{Passed: false, Message: fmt.Sprintf("metric %s is not numeric", ctx.MetricName)}
	}

	if actual >= want {
		return Result{Passed: true, ActualValue: actual, Message: fmt.Sprintf("%s: %v >= %v", ctx.MetricName, actual, want)}
	}
	return Result{Passed: false, ActualValue: actual, Message: fmt.Sprintf("%s: %v < %v", ctx.MetricName, actual, want)}
}

// Percentage is the numeric threshold scaled 0-100.
type Percentage struct{}

func (Percentage) Name() string { return "percentage" }

func (Percentage) Validate(target any, ctx Context) Result {
	if r, missing := missingMetric(ctx); missing {
		return r
	}

	want, ok := asFloat(target)
	if !ok {
		return Result{Passed: false, Message: fmt.Sprintf("target %v is not numeric", target)}
	}
	actual, ok := asFloat(ctx.Metrics[ctx.MetricName])
	if !ok {
		return Result{Passed: false, Message: fmt.Sprintf("metric %s is not numeric", ctx.MetricName)}
	}

	if actual >= want {
		return Result{Passed: true, ActualValue: actual, Message: fmt.Sprintf("%s: %v%% >= %v%%", ctx.MetricName, actual, want)}
	}
	return Result{Passed: false, ActualValue: actual, Message: fmt.Sprintf("%s: %v%% < %v%%", ctx.MetricName, actual, want)}
}

// Boolean passes when the metric equals the boolean target.
type Boolean struct{}

func (Boolean) Name() string { return "boolean" }

func (Boolean) Validate(target any, ctx Context) Result {
	if r, missing := missingMetric(ctx); missing {
		return r
	}

	want, ok := target.(bool)
	if !ok {
		return Result{Passed: false, Message: fmt.Sprintf("target %v is not a boolean", target)}
	}
	actual, ok := ctx.Metrics[ctx.MetricName].(bool)
	if !ok {
		return Result{Passed: false, Message: fmt.Sprintf("metric %s is not a boolean", ctx.MetricName)}
	}

	if actual == want {
		return Result{Passed: true, ActualValue: actual, Message: fmt.Sprintf("%s: %v == %v", ctx.MetricName, actual, want)}
	}
	return Result{Passed: false, ActualValue: actual, Message: fmt.Sprintf("%s: %v != %v", ctx.MetricName, actual, want)}
}

// ListLength passes when the metric is a list at least as long as the
// target.
type ListLength struct{}

func (ListLength) Name() string { return "list_length" }

func (ListLength) Validate(target any, ctx Context) Result {
	if r, missing := missingMetric(ctx); missing {
		return r
	}

	want, ok := asFloat(target)
	if !ok {
		return Result{Passed: false, Message: fmt.Sprintf("target %v is not numeric", target)}
	}

	list, ok := ctx.Metrics[ctx.MetricName].([]any)
	if !ok {
		return Result{Passed: false, Message: fmt.Sprintf("metric %s is not a list", ctx.MetricName)}
	}
	actual := len(list)

	if float64(actual) >= want {
		return Result{Passed: true, ActualValue: actual, Message: fmt.Sprintf("%s length: %d >= %v", ctx.MetricName, actual, want)}
	}
	return Result{Passed: false, ActualValue: actual, Message: fmt.Sprintf("%s length: %d < %v", ctx.MetricName, actual, want)}
}
