package entities

// Subscriber is an external webhook endpoint that wants to be told about
// bloom events. An empty Regions list means every region; MinIntensity
// filters out events below the given rank.
type Subscriber struct {
	Name         string         `json:"name" yaml:"name"`
	URL          string         `json:"url" yaml:"url"`
	Regions      []string       `json:"regions,omitempty" yaml:"regions,omitempty"`
	MinIntensity BloomIntensity `json:"min_intensity,omitempty" yaml:"min_intensity,omitempty"`
}

// Wants reports whether the subscriber should receive ev.
func (s *Subscriber) Wants(ev *BloomEvent) bool {
	if ev == nil {
		return false
	}
	if s.MinIntensity != "" && ev.Intensity.Rank() < s.MinIntensity.Rank() {
		return false
	}
	if len(s.Regions) == 0 {
		return true
	}
	for _, r := range s.Regions {
		if r == ev.RegionID {
			return true
		}
	}
	return false
}

// SubscriberSet is the parsed form of the subscribers config file.
type SubscriberSet struct {
	Subscribers []Subscriber `json:"subscribers" yaml:"subscribers"`
}

// For returns the subscribers interested in ev.
func (ss *SubscriberSet) For(ev *BloomEvent) []Subscriber {
	var out []Subscriber
	for i := range ss.Subscribers {
		if ss.Subscribers[i].Wants(ev) {
			out = append(out, ss.Subscribers[i])
		}
	}
	return out
}
