package salesforce

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_DescribePayload(t *testing.T) {
	body := `{"name":"Account","label":"Account","fields":[{"name":"Pipeline_Stage__c","label":"Pipeline Stage","type":"double","length":0,"updateable":true}]}`

	var desc SObjectDescription
	err := decodeJSON(strings.NewReader(body), &desc)
	require.NoError(t, err)
	assert.Equal(t, "Account", desc.Name)
	require.Len(t, desc.Fields, 1)
	assert.Equal(t, "Pipeline_Stage__c", desc.Fields[0].Name)
	assert.Equal(t, "double", desc.Fields[0].Type)
	assert.True(t, desc.Fields[0].Updateable)
}

func TestDecodeJSON_InvalidJSON(t *testing.T) {
	var desc SObjectDescription
	err := decodeJSON(strings.NewReader(`{invalid json`), &desc)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decode json")
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	var desc SObjectDescription
	err := decodeJSON(strings.NewReader(""), &desc)
	assert.Error(t, err)
}

func TestDecodeJSON_EmptyObject(t *testing.T) {
	var desc SObjectDescription
	err := decodeJSON(strings.NewReader("{}"), &desc)
	require.NoError(t, err)
	assert.Equal(t, "", desc.Name)
	assert.Nil(t, desc.Fields)
}

func TestDecodeJSON_AccountSlice(t *testing.T) {
	body := `[{"Id":"001hn","Name":"Hanoi Trading","Pipeline_Stage__c":5},{"Id":"001jk","Name":"Jakarta Steel","Pipeline_Stage__c":2}]`

	var accounts []Account
	err := decodeJSON(strings.NewReader(body), &accounts)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Hanoi Trading", accounts[0].Name)
	assert.Equal(t, float64(5), accounts[0].PipelineStage)
	assert.Equal(t, "001jk", accounts[1].ID)
}
