package parser

import (
	"bytes"
	"encoding/xml"
	"time"

	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	"github.com/dmarcwatch/reportstack/internal/enum"
	"github.com/dmarcwatch/reportstack/internal/models"
	"github.com/dmarcwatch/reportstack/internal/utils"
)

// Parse maps one DMARC aggregate-report XML document into the canonical
// report header plus per-source records. Pure function, no I/O.
//
// Tolerated: missing optional fields, unknown extra elements,
// non-positive record counts (passed through for the caller to judge).
// Rejected with MalformedReportError: missing report_metadata,
// policy_published, domain or date_range; empty report_id;
// date_end <= date_begin.
func Parse(xmlBytes []byte) (*models.DmarcReport, []models.DmarcRecord, error) {
	var fb feedback
	if err := xml.NewDecoder(bytes.NewReader(xmlBytes)).Decode(&fb); err != nil {
		return nil, nil, reportstack_errors.NewMalformedReport("xml decode failed: %v", err)
	}

	if fb.ReportMetadata == nil {
		return nil, nil, reportstack_errors.NewMalformedReport("missing report_metadata")
	}
	if fb.PolicyPublished == nil {
		return nil, nil, reportstack_errors.NewMalformedReport("missing policy_published")
	}
	if fb.PolicyPublished.Domain == "" {
		return nil, nil, reportstack_errors.NewMalformedReport("missing policy_published domain")
	}
	if fb.ReportMetadata.ReportID == "" {
		return nil, nil, reportstack_errors.NewMalformedReport("empty report_id")
	}
	if fb.ReportMetadata.DateRange == nil {
		return nil, nil, reportstack_errors.NewMalformedReport("missing date_range")
	}

	dateBegin := time.Unix(fb.ReportMetadata.DateRange.Begin, 0).UTC()
	dateEnd := time.Unix(fb.ReportMetadata.DateRange.End, 0).UTC()
	if !dateEnd.After(dateBegin) {
		return nil, nil, reportstack_errors.NewMalformedReport(
			"date_end %d is not after date_begin %d",
			fb.ReportMetadata.DateRange.End, fb.ReportMetadata.DateRange.Begin)
	}

	report := &models.DmarcReport{
		ReportID:   fb.ReportMetadata.ReportID,
		OrgName:    fb.ReportMetadata.OrgName,
		Domain:     fb.PolicyPublished.Domain,
		ADKIM:      alignmentOrDefault(fb.PolicyPublished.ADKIM),
		ASPF:       alignmentOrDefault(fb.PolicyPublished.ASPF),
		Policy:     fb.PolicyPublished.P,
		Percentage: utils.GetOrDefault(fb.PolicyPublished.Pct, 100),
		DateBegin:  dateBegin,
		DateEnd:    dateEnd,
		Errors:     fb.ReportMetadata.Errors,
	}
	if fb.ReportMetadata.Email != "" {
		report.Email = utils.Ptr(fb.ReportMetadata.Email)
	}
	if fb.ReportMetadata.ExtraContactInfo != "" {
		report.ExtraContactInfo = utils.Ptr(fb.ReportMetadata.ExtraContactInfo)
	}
	if fb.PolicyPublished.SP != "" {
		report.SubdomainPolicy = utils.Ptr(fb.PolicyPublished.SP)
	}

	records := make([]models.DmarcRecord, 0, len(fb.Records))
	for _, rec := range fb.Records {
		records = append(records, parseRecord(rec))
	}

	return report, records, nil
}

func parseRecord(rec record) models.DmarcRecord {
	out := models.DmarcRecord{
		SourceIP:   rec.Row.SourceIP,
		Count:      rec.Row.Count,
		HeaderFrom: rec.Identifiers.HeaderFrom,
	}

	if rec.Row.PolicyEvaluated.Disposition != "" {
		out.Disposition = utils.Ptr(enum.Disposition(rec.Row.PolicyEvaluated.Disposition))
	}
	if rec.Row.PolicyEvaluated.DKIM != "" {
		out.EvalDKIM = utils.Ptr(enum.DMARCResult(rec.Row.PolicyEvaluated.DKIM))
	}
	if rec.Row.PolicyEvaluated.SPF != "" {
		out.EvalSPF = utils.Ptr(enum.DMARCResult(rec.Row.PolicyEvaluated.SPF))
	}
	if rec.Identifiers.EnvelopeFrom != "" {
		out.EnvelopeFrom = utils.Ptr(rec.Identifiers.EnvelopeFrom)
	}
	if rec.Identifiers.EnvelopeTo != "" {
		out.EnvelopeTo = utils.Ptr(rec.Identifiers.EnvelopeTo)
	}

	// Reporters may list several signatures/mechanisms per record; only
	// the first of each kind fits the flat per-record schema. The raw
	// XML remains in the content store for replay.
	if len(rec.AuthResults.DKIM) > 0 {
		dkim := rec.AuthResults.DKIM[0]
		if dkim.Domain != "" {
			out.DKIMDomain = utils.Ptr(dkim.Domain)
		}
		if dkim.Selector != "" {
			out.DKIMSelector = utils.Ptr(dkim.Selector)
		}
		if dkim.Result != "" {
			out.DKIMResult = utils.Ptr(dkim.Result)
		}
	}
	if len(rec.AuthResults.SPF) > 0 {
		spf := rec.AuthResults.SPF[0]
		if spf.Domain != "" {
			out.SPFDomain = utils.Ptr(spf.Domain)
		}
		if spf.Scope != "" {
			out.SPFScope = utils.Ptr(spf.Scope)
		}
		if spf.Result != "" {
			out.SPFResult = utils.Ptr(spf.Result)
		}
	}

	return out
}

func alignmentOrDefault(value string) enum.AlignmentMode {
	if value == "" {
		return enum.AlignmentRelaxed
	}
	return enum.AlignmentMode(value)
}
