package manifest

// DownloadMap maps a canonical OS name to architecture → download URL.
// Keys are always the normalized values produced by the asset parser;
// the URLs point at the repackaged archives, never at upstream assets.
type DownloadMap map[string]map[string]string

// Set records a download URL for an (os, arch) pair. A second write to
// the same pair overwrites the first; callers decide whether to log it.
func (d DownloadMap) Set(osName, arch, url string) {
	if d[osName] == nil {
		d[osName] = make(map[string]string)
	}
	d[osName][arch] = url
}

// Has reports whether an entry exists for the (os, arch) pair.
func (d DownloadMap) Has(osName, arch string) bool {
	_, ok := d[osName][arch]
	return ok
}

// Len returns the total number of download entries.
func (d DownloadMap) Len() int {
	n := 0
	for _, archs := range d {
		n += len(archs)
	}
	return n
}

// Channel describes the downloadable core builds of one release track.
type Channel struct {
	Version   string      `json:"version"`
	Tag       string      `json:"tag"`
	Downloads DownloadMap `json:"downloads"`
}

// Empty reports whether the channel carries no downloads at all. An
// empty channel is structurally valid but always considered stale.
func (c *Channel) Empty() bool {
	return c == nil || c.Downloads.Len() == 0
}

// Document is the persisted core manifest consumed by the client.
type Document struct {
	UpdatedAt string  `json:"updated_at"`
	Stable    Channel `json:"stable"`
	Alpha     Channel `json:"alpha"`
}

// Channel returns the named channel section, nil for unknown names.
func (d *Document) Channel(name string) *Channel {
	switch name {
	case ChannelStable:
		return &d.Stable
	case ChannelAlpha:
		return &d.Alpha
	default:
		return nil
	}
}

// RuleEntry is the persisted, externally consumed form of a rule record.
// The per-record file list is kept in memory only.
type RuleEntry struct {
	Name     string `json:"name"`
	Form     string `json:"form"`
	Category string `json:"category"`
}

// RuleIndex is the persisted rule-set index for one indexing scope.
type RuleIndex struct {
	Version     string      `json:"version"`
	BaseURL     string      `json:"baseUrl"`
	RawBaseURL  string      `json:"rawBaseUrl"`
	Homogeneous bool        `json:"homogeneous"`
	Rules       []RuleEntry `json:"rules"`
}

// Channel names
const (
	ChannelStable = "stable"
	ChannelAlpha  = "alpha"
)
