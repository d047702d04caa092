package profiler

// OutcomeClassifier decides, for a finished call, whether label is an intent (a call that
// changes host state) and whether it succeeded. Classified calls are counted as OKs/NOKs on the
// frames and the call-graph export charges a fixed CPU cost for every OK.
type OutcomeClassifier func(label string, result interface{}, err error) (intent bool, ok bool)

// IntentClassifier treats the given labels as intents that succeed when they return a nil
// error and a zero status code.
func IntentClassifier(labels ...string) OutcomeClassifier {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return func(label string, result interface{}, err error) (bool, bool) {
		if _, ok := set[label]; !ok {
			return false, false
		}
		if err != nil {
			return true, false
		}
		switch code := result.(type) {
		case int:
			return true, code == 0
		case int32:
			return true, code == 0
		case int64:
			return true, code == 0
		case float64:
			return true, code == 0
		}
		return true, false
	}
}
