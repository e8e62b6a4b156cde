package parser

import "encoding/xml"

// Wire structs mirroring the DMARC aggregate-report <feedback> schema
// (RFC 7489 appendix C). Required sections are pointers so a missing
// element is distinguishable from an empty one.

type feedback struct {
	XMLName         xml.Name         `xml:"feedback"`
	ReportMetadata  *reportMetadata  `xml:"report_metadata"`
	PolicyPublished *policyPublished `xml:"policy_published"`
	Records         []record         `xml:"record"`
}

type reportMetadata struct {
	OrgName          string     `xml:"org_name"`
	Email            string     `xml:"email"`
	ExtraContactInfo string     `xml:"extra_contact_info"`
	ReportID         string     `xml:"report_id"`
	DateRange        *dateRange `xml:"date_range"`
	Errors           []string   `xml:"error"`
}

type dateRange struct {
	Begin int64 `xml:"begin"`
	End   int64 `xml:"end"`
}

type policyPublished struct {
	Domain string `xml:"domain"`
	ADKIM  string `xml:"adkim"`
	ASPF   string `xml:"aspf"`
	P      string `xml:"p"`
	SP     string `xml:"sp"`
	Pct    *int   `xml:"pct"`
}

type record struct {
	Row         row         `xml:"row"`
	Identifiers identifiers `xml:"identifiers"`
	AuthResults authResults `xml:"auth_results"`
}

type row struct {
	SourceIP        string          `xml:"source_ip"`
	Count           int             `xml:"count"`
	PolicyEvaluated policyEvaluated `xml:"policy_evaluated"`
}

type policyEvaluated struct {
	Disposition string `xml:"disposition"`
	DKIM        string `xml:"dkim"`
	SPF         string `xml:"spf"`
}

type identifiers struct {
	HeaderFrom   string `xml:"header_from"`
	EnvelopeFrom string `xml:"envelope_from"`
	EnvelopeTo   string `xml:"envelope_to"`
}

type authResults struct {
	DKIM []dkimAuthResult `xml:"dkim"`
	SPF  []spfAuthResult  `xml:"spf"`
}

type dkimAuthResult struct {
	Domain   string `xml:"domain"`
	Selector string `xml:"selector"`
	Result   string `xml:"result"`
}

type spfAuthResult struct {
	Domain string `xml:"domain"`
	Scope  string `xml:"scope"`
	Result string `xml:"result"`
}
