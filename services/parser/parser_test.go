package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
	"github.com/dmarcwatch/reportstack/internal/enum"
)

const fullReportXML = `<?xml version="1.0" encoding="UTF-8"?>
<feedback>
  <report_metadata>
    <org_name>Google Inc.</org_name>
    <email>noreply-dmarc-support@google.com</email>
    <extra_contact_info>https://support.google.com/a/answer/2466580</extra_contact_info>
    <report_id>12345678901234567890</report_id>
    <date_range>
      <begin>1609459200</begin>
      <end>1609545600</end>
    </date_range>
    <error>partial data</error>
  </report_metadata>
  <policy_published>
    <domain>example.com</domain>
    <adkim>s</adkim>
    <aspf>r</aspf>
    <p>quarantine</p>
    <sp>reject</sp>
    <pct>50</pct>
  </policy_published>
  <record>
    <row>
      <source_ip>192.0.2.1</source_ip>
      <count>12</count>
      <policy_evaluated>
        <disposition>none</disposition>
        <dkim>pass</dkim>
        <spf>fail</spf>
      </policy_evaluated>
    </row>
    <identifiers>
      <envelope_from>example.com</envelope_from>
      <header_from>example.com</header_from>
    </identifiers>
    <auth_results>
      <dkim>
        <domain>example.com</domain>
        <selector>default</selector>
        <result>pass</result>
      </dkim>
      <dkim>
        <domain>second.example.com</domain>
        <selector>backup</selector>
        <result>fail</result>
      </dkim>
      <spf>
        <domain>mail.example.com</domain>
        <scope>mfrom</scope>
        <result>fail</result>
      </spf>
    </auth_results>
  </record>
  <record>
    <row>
      <source_ip>198.51.100.7</source_ip>
      <count>3</count>
      <policy_evaluated>
        <disposition>quarantine</disposition>
        <dkim>fail</dkim>
        <spf>fail</spf>
      </policy_evaluated>
    </row>
    <identifiers>
      <header_from>example.com</header_from>
    </identifiers>
    <auth_results>
      <spf>
        <domain>forwarder.example.net</domain>
        <result>softfail</result>
      </spf>
    </auth_results>
  </record>
</feedback>`

func TestParse_FullReport(t *testing.T) {
	report, records, err := Parse([]byte(fullReportXML))
	require.NoError(t, err)

	assert.Equal(t, "12345678901234567890", report.ReportID)
	assert.Equal(t, "Google Inc.", report.OrgName)
	assert.Equal(t, "example.com", report.Domain)
	require.NotNil(t, report.Email)
	assert.Equal(t, "noreply-dmarc-support@google.com", *report.Email)
	assert.Equal(t, enum.AlignmentStrict, report.ADKIM)
	assert.Equal(t, enum.AlignmentRelaxed, report.ASPF)
	assert.Equal(t, "quarantine", report.Policy)
	require.NotNil(t, report.SubdomainPolicy)
	assert.Equal(t, "reject", *report.SubdomainPolicy)
	assert.Equal(t, 50, report.Percentage)
	assert.Equal(t, time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), report.DateBegin)
	assert.Equal(t, time.Date(2021, time.January, 2, 0, 0, 0, 0, time.UTC), report.DateEnd)
	assert.Equal(t, []string{"partial data"}, []string(report.Errors))

	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "192.0.2.1", first.SourceIP)
	assert.Equal(t, 12, first.Count)
	require.NotNil(t, first.Disposition)
	assert.Equal(t, enum.DispositionNone, *first.Disposition)
	require.NotNil(t, first.EvalDKIM)
	assert.Equal(t, enum.DMARCResultPass, *first.EvalDKIM)
	require.NotNil(t, first.EvalSPF)
	assert.Equal(t, enum.DMARCResultFail, *first.EvalSPF)
	assert.Equal(t, "example.com", first.HeaderFrom)
	require.NotNil(t, first.EnvelopeFrom)
	assert.Equal(t, "example.com", *first.EnvelopeFrom)

	// Only the first auth result of each mechanism is kept
	require.NotNil(t, first.DKIMDomain)
	assert.Equal(t, "example.com", *first.DKIMDomain)
	require.NotNil(t, first.DKIMSelector)
	assert.Equal(t, "default", *first.DKIMSelector)
	require.NotNil(t, first.SPFScope)
	assert.Equal(t, "mfrom", *first.SPFScope)

	second := records[1]
	assert.Equal(t, "198.51.100.7", second.SourceIP)
	assert.Nil(t, second.DKIMDomain)
	require.NotNil(t, second.SPFResult)
	assert.Equal(t, "softfail", *second.SPFResult)
	assert.Nil(t, second.EnvelopeFrom)
}

func TestParse_DefaultsWhenOptionalPolicyFieldsAbsent(t *testing.T) {
	xmlDoc := `<feedback>
  <report_metadata>
    <org_name>acme</org_name>
    <report_id>r-1</report_id>
    <date_range><begin>1609459200</begin><end>1609545600</end></date_range>
  </report_metadata>
  <policy_published>
    <domain>example.org</domain>
    <p>none</p>
  </policy_published>
</feedback>`

	report, records, err := Parse([]byte(xmlDoc))
	require.NoError(t, err)

	assert.Equal(t, enum.AlignmentRelaxed, report.ADKIM)
	assert.Equal(t, enum.AlignmentRelaxed, report.ASPF)
	assert.Equal(t, 100, report.Percentage)
	assert.Nil(t, report.Email)
	assert.Nil(t, report.SubdomainPolicy)
	assert.Empty(t, records)
}

func TestParse_MissingSections(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{
			name: "missing report_metadata",
			xml:  `<feedback><policy_published><domain>example.com</domain></policy_published></feedback>`,
		},
		{
			name: "missing policy_published",
			xml: `<feedback><report_metadata><report_id>r-1</report_id>
<date_range><begin>1</begin><end>2</end></date_range></report_metadata></feedback>`,
		},
		{
			name: "missing domain",
			xml: `<feedback><report_metadata><report_id>r-1</report_id>
<date_range><begin>1</begin><end>2</end></date_range></report_metadata>
<policy_published><p>none</p></policy_published></feedback>`,
		},
		{
			name: "empty report_id",
			xml: `<feedback><report_metadata>
<date_range><begin>1</begin><end>2</end></date_range></report_metadata>
<policy_published><domain>example.com</domain></policy_published></feedback>`,
		},
		{
			name: "missing date_range",
			xml: `<feedback><report_metadata><report_id>r-1</report_id></report_metadata>
<policy_published><domain>example.com</domain></policy_published></feedback>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tt.xml))

			require.Error(t, err)
			var malformed *reportstack_errors.MalformedReportError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}

func TestParse_DateEndNotAfterDateBegin(t *testing.T) {
	xmlDoc := `<feedback><report_metadata><report_id>r-1</report_id>
<date_range><begin>1609545600</begin><end>1609459200</end></date_range></report_metadata>
<policy_published><domain>example.com</domain></policy_published></feedback>`

	_, _, err := Parse([]byte(xmlDoc))

	require.Error(t, err)
	var malformed *reportstack_errors.MalformedReportError
	assert.ErrorAs(t, err, &malformed)
}

func TestParse_EqualDatesRejected(t *testing.T) {
	xmlDoc := `<feedback><report_metadata><report_id>r-1</report_id>
<date_range><begin>1609459200</begin><end>1609459200</end></date_range></report_metadata>
<policy_published><domain>example.com</domain></policy_published></feedback>`

	_, _, err := Parse([]byte(xmlDoc))

	require.Error(t, err)
}

func TestParse_NotXML(t *testing.T) {
	_, _, err := Parse([]byte("this is not xml at all"))

	require.Error(t, err)
	var malformed *reportstack_errors.MalformedReportError
	assert.ErrorAs(t, err, &malformed)
}

func TestParse_NonPositiveCountPassedThrough(t *testing.T) {
	xmlDoc := `<feedback><report_metadata><report_id>r-1</report_id>
<date_range><begin>1609459200</begin><end>1609545600</end></date_range></report_metadata>
<policy_published><domain>example.com</domain></policy_published>
<record><row><source_ip>192.0.2.9</source_ip><count>0</count></row>
<identifiers><header_from>example.com</header_from></identifiers></record></feedback>`

	_, records, err := Parse([]byte(xmlDoc))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].Count)
}
