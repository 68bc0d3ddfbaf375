package scheduler

import "time"

// Occurrence is one projected dispatch.
type Occurrence struct {
	Job string    `json:"job"`
	Due time.Time `json:"due"`
}

// Preview projects the next count dispatches after now, as Run would order
// them if every job finished instantly. Real runs start later when a job
// overruns; the due times themselves do not move.
func Preview(specs []Spec, loc *time.Location, now time.Time, count int) ([]Occurrence, error) {
	if len(specs) == 0 {
		return nil, ErrNoProducers
	}
	ps := make([]*Producer, 0, len(specs))
	for _, spec := range specs {
		p, err := NewProducer(spec, loc)
		if err != nil {
			return nil, err
		}
		p.Start(now.Unix())
		ps = append(ps, p)
	}

	out := make([]Occurrence, 0, max(count, 0))
	for len(out) < count {
		p := earliest(ps)
		if p.next == Never {
			break
		}
		out = append(out, Occurrence{Job: p.name, Due: time.Unix(p.next, 0).In(locOrLocal(loc))})
		p.Advance()
	}
	return out, nil
}

func locOrLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
