package musicbrainz

type artistCredit struct {
	Name   string `json:"name"`
	Artist *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type release struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        *string        `json:"title"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ISRCs        []string       `json:"isrcs"`
	Releases     []release      `json:"releases"`
}

type recordingSearchResponse struct {
	Count      int          `json:"count"`
	Recordings []*recording `json:"recordings"`
}
