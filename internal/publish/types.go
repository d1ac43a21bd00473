package publish

import (
	"sort"
	"time"
)

// ChannelMessageMap records where a document currently lives: channel id
// to the message ids posted there (albums produce several ids per
// channel). The persisted copy must always reflect exactly the live
// postings; Update replaces it wholesale.
type ChannelMessageMap map[string][]int

// Channels returns the channel ids in sorted order.
func (m ChannelMessageMap) Channels() []string {
	out := make([]string, 0, len(m))
	for ch := range m {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (m ChannelMessageMap) Clone() ChannelMessageMap {
	out := make(ChannelMessageMap, len(m))
	for ch, ids := range m {
		copied := make([]int, len(ids))
		copy(copied, ids)
		out[ch] = copied
	}
	return out
}

// Document is the composed report content handed to the fan-out engine.
type Document struct {
	ID         string
	AuthorID   string
	AuthorName string
	Position   string
	ObjectName string
	OrgName    string
	WorkDone   string
	Materials  string
	PhotoIDs   []string
	Date       time.Time
}

// Result reports the outcome of one publish or update pass. Partial
// failure is not an error: failed channels are simply absent from Map
// and counted, so callers can surface the shortfall to the acting user.
type Result struct {
	Map            ChannelMessageMap
	Sent           int
	Failed         int
	FailedChannels []string
}
