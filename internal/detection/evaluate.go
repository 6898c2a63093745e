package detection

import "vaultsphere/internal/schema"

// DetectorEvaluation compares one detector's flagged users with the labels.
type DetectorEvaluation struct {
	Category  Category `json:"category"`
	Flagged   int      `json:"flagged"`
	Labelled  int      `json:"labelled"`
	Precision float64  `json:"precision"`
}

// Evaluation measures findings against the anomaly_injected ground truth.
// Labels are never used by the detectors themselves.
type Evaluation struct {
	InjectedEvents int                  `json:"injected_events"`
	InjectedUsers  int                  `json:"injected_users"`
	DetectedUsers  int                  `json:"detected_users"`
	Recall         float64              `json:"recall"`
	Detectors      []DetectorEvaluation `json:"detectors"`
}

// Evaluate returns nil when events carry no positive labels.
func Evaluate(r *Report, events []schema.Event) *Evaluation {
	labelled := make(map[string]bool)
	ev := &Evaluation{}
	for i := range events {
		if events[i].AnomalyInjected {
			ev.InjectedEvents++
			labelled[events[i].UserID] = true
		}
	}
	if ev.InjectedEvents == 0 {
		return nil
	}
	ev.InjectedUsers = len(labelled)

	for _, u := range r.FlaggedUsers() {
		if labelled[u] {
			ev.DetectedUsers++
		}
	}
	ev.Recall = float64(ev.DetectedUsers) / float64(ev.InjectedUsers)

	for _, rule := range Rules() {
		users := r.Users(rule.Category)
		de := DetectorEvaluation{Category: rule.Category, Flagged: len(users)}
		for _, u := range users {
			if labelled[u] {
				de.Labelled++
			}
		}
		if de.Flagged > 0 {
			de.Precision = float64(de.Labelled) / float64(de.Flagged)
		}
		ev.Detectors = append(ev.Detectors, de)
	}
	return ev
}
