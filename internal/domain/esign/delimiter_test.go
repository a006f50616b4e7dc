package esign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealersign/internal/domain/entity"
)

func TestExtractKeys(t *testing.T) {
	keys := ExtractKeys("<p>{{buyer_name}} buys {{vehicle_vin}} for {{price}}. Regards, {{buyer_name}}</p>")
	assert.Equal(t, []string{"buyer_name", "vehicle_vin", "price"}, keys)

	assert.Empty(t, ExtractKeys("no placeholders here"))
	assert.Empty(t, ExtractKeys("{{not valid}} {{also-not}}"))
}

func TestScanAndPopulateDelimiters_RoundTrip(t *testing.T) {
	existing := []entity.Delimiter{
		{Key: "A", Type: entity.DelimiterTypeEmail, Required: true},
		{Key: "B", Type: entity.DelimiterTypeNumber, DefaultValue: "0"},
	}

	// A, B and a new C present in the HTML
	result := ScanAndPopulateDelimiters("{{A}} {{B}} {{C}}", existing)
	require.Len(t, result, 3)

	assert.Equal(t, "A", result[0].Key)
	assert.Equal(t, entity.DelimiterTypeEmail, result[0].Type)
	assert.True(t, result[0].Required)
	assert.False(t, result[0].Unused)

	assert.Equal(t, "B", result[1].Key)
	assert.Equal(t, entity.DelimiterTypeNumber, result[1].Type)
	assert.Equal(t, "0", result[1].DefaultValue)
	assert.False(t, result[1].Unused)

	assert.Equal(t, "C", result[2].Key)
	assert.Equal(t, entity.DelimiterTypeText, result[2].Type)
	assert.False(t, result[2].Required)
	assert.False(t, result[2].Unused)

	// C removed from the HTML: record kept, marked unused
	result = ScanAndPopulateDelimiters("{{A}} {{B}}", result)
	require.Len(t, result, 3)
	assert.Equal(t, "C", result[2].Key)
	assert.True(t, result[2].Unused)
	assert.False(t, result[0].Unused)
	assert.False(t, result[1].Unused)

	// C reappears: unused flag cleared, type survived the absence
	result[2].Type = entity.DelimiterTypeDate
	result = ScanAndPopulateDelimiters("{{A}} {{B}} {{C}}", result)
	require.Len(t, result, 3)
	assert.False(t, result[2].Unused)
	assert.Equal(t, entity.DelimiterTypeDate, result[2].Type)
}

func TestScanAndPopulateDelimiters_PreservesAssignment(t *testing.T) {
	order := 2
	existing := []entity.Delimiter{
		{Key: "sig", Type: entity.DelimiterTypeSignature, AssignedTo: &order},
	}

	result := ScanAndPopulateDelimiters("plain text without the key", existing)
	require.Len(t, result, 1)
	assert.True(t, result[0].Unused)
	require.NotNil(t, result[0].AssignedTo)
	assert.Equal(t, 2, *result[0].AssignedTo)
}

func TestValidateNotificationDelimiters(t *testing.T) {
	delimiters := []entity.Delimiter{
		{Key: "price"},
		{Key: "gone", Unused: true},
	}

	errs := ValidateNotificationDelimiters(entity.NotificationConfig{
		Subject:     "Offer for {{price}}",
		Body:        "Deal at {{price}}, see {{gone}} and {{missing}}",
		SMSTemplate: "{{missing}} again",
	}, delimiters)

	require.Len(t, errs, 3)
	codes := map[string]int{}
	for _, e := range errs {
		codes[e.Code]++
	}
	assert.Equal(t, 3, codes["undeclared_delimiter"])
}

func TestRenderPreview(t *testing.T) {
	delimiters := []entity.Delimiter{
		{Key: "name", DefaultValue: "John Doe"},
		{Key: "price"},
		{Key: "vin", DefaultValue: "unused-default"},
	}

	html := "{{name}} pays {{price}} for {{vin}}. Thanks {{name}}!"
	out := RenderPreview(html, delimiters, map[string]string{"vin": "1FTEX1C84AF"})

	// sample > default > bracketed placeholder, and replacement is global
	assert.Equal(t, "John Doe pays [price] for 1FTEX1C84AF. Thanks John Doe!", out)
}

func TestStripDelimiters(t *testing.T) {
	assert.Equal(t, "Your code  expires in  min", StripDelimiters("Your code {{otp}} expires in {{mins}} min"))
	assert.Equal(t, "untouched", StripDelimiters("untouched"))
}
