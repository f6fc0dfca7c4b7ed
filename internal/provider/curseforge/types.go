package curseforge

// FingerprintRequest is the body of the fingerprint lookup.
type FingerprintRequest struct {
	Fingerprints []uint32 `json:"fingerprints"`
}

// FingerprintResponse wraps the fingerprint lookup result.
type FingerprintResponse struct {
	Data FingerprintMatches `json:"data"`
}

// FingerprintMatches lists files whose fingerprint matched exactly.
type FingerprintMatches struct {
	IsCacheBuilt          bool     `json:"isCacheBuilt"`
	ExactMatches          []Match  `json:"exactMatches"`
	ExactFingerprints     []uint32 `json:"exactFingerprints"`
	UnmatchedFingerprints []uint32 `json:"unmatchedFingerprints"`
}

// Match pairs a project id with the matching file.
type Match struct {
	ID   int  `json:"id"`
	File File `json:"file"`
}

// File is a CurseForge file. GameVersions mixes game versions ("1.20.1"),
// loader names ("Fabric") and environment tags ("Client").
type File struct {
	ID              int      `json:"id"`
	GameID          int      `json:"gameId"`
	ModID           int      `json:"modId"`
	DisplayName     string   `json:"displayName"`
	FileName        string   `json:"fileName"`
	FileFingerprint uint32   `json:"fileFingerprint"`
	GameVersions    []string `json:"gameVersions"`
	FileDate        string   `json:"fileDate"`
}

// ModResponse wraps a single mod.
type ModResponse struct {
	Data Mod `json:"data"`
}

// ModsRequest is the body of the batch mod lookup.
type ModsRequest struct {
	ModIDs []int `json:"modIds"`
}

// ModsResponse wraps the batch mod lookup result.
type ModsResponse struct {
	Data []Mod `json:"data"`
}

// Mod is the subset of the mod object used for display.
type Mod struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Links struct {
		WebsiteURL string `json:"websiteUrl"`
	} `json:"links"`
}
