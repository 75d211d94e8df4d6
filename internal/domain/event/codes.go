package event

// knownCodes maps the two-letter SIA signal codes the broker recognizes to
// their conventional descriptions. Codes outside this table still decode,
// classified as unrecognized.
//
//nolint:gochecknoglobals // Static vocabulary, read-only after init.
var knownCodes = map[string]string{
	"BA": "Burglary Alarm",
	"BR": "Burglary Restore",
	"CA": "Automatic Closing",
	"CL": "Closing Report",
	"FA": "Fire Alarm",
	"FR": "Fire Restore",
	"HA": "Holdup Alarm",
	"HB": "Heartbeat",
	"HE": "Heartbeat",
	"MA": "Medical Alarm",
	"NP": "Network Test",
	"OP": "Opening Report",
	"PA": "Panic Alarm",
	"PR": "Panic Restore",
	"RP": "Automatic Test",
	"TA": "Tamper Alarm",
	"TR": "Tamper Restore",
	"WA": "Water Alarm",
	"YK": "Communications Restoral Test",
}

// DescribeCode returns the description of a known signal code.
// The second result is false for codes outside the vocabulary.
func DescribeCode(code string) (string, bool) {
	description, ok := knownCodes[code]

	return description, ok
}

// DefaultHeartbeatCodes is the baseline set of periodic-test codes excluded
// from forwarding when the configuration does not override it.
func DefaultHeartbeatCodes() []string {
	return []string{"RP", "NP", "YK", "HE", "HB"}
}
