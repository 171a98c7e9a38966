package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account represents a Salesforce Account record with the custom outreach
// fields the sync layer maintains.
type Account struct {
	ID             string  `json:"Id" salesforce:"Id"`
	Name           string  `json:"Name" salesforce:"Name"`
	Website        string  `json:"Website" salesforce:"Website"`
	Industry       string  `json:"Industry" salesforce:"Industry"`
	BillingCountry string  `json:"BillingCountry" salesforce:"BillingCountry"`
	Phone          string  `json:"Phone" salesforce:"Phone"`
	Type           string  `json:"Type" salesforce:"Type"`
	PipelineStage  float64 `json:"Pipeline_Stage__c" salesforce:"Pipeline_Stage__c"`
	StageName      string  `json:"Pipeline_Stage_Name__c" salesforce:"Pipeline_Stage_Name__c"`
	Engagement     string  `json:"Engagement_Level__c" salesforce:"Engagement_Level__c"`
	LastReplyDate  string  `json:"Last_Reply_Date__c" salesforce:"Last_Reply_Date__c"`
	LastIntent     string  `json:"Last_Intent__c" salesforce:"Last_Intent__c"`
}

// accountFields are the SOQL fields selected for Account queries.
var accountFields = []string{
	"Id", "Name", "Website", "Industry", "BillingCountry", "Phone", "Type",
	"Pipeline_Stage__c", "Pipeline_Stage_Name__c", "Engagement_Level__c",
	"Last_Reply_Date__c", "Last_Intent__c",
}

// FindAccountByName queries Salesforce for an Account matching the given
// company name. Returns nil if no account is found.
func FindAccountByName(ctx context.Context, c Client, name string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Name = '%s' LIMIT 1",
		strings.Join(accountFields, ", "),
		escapeSoql(name),
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by name %s", name))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// FindAccountByID queries Salesforce for an Account by its ID.
// Returns nil if no account is found.
func FindAccountByID(ctx context.Context, c Client, id string) (*Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Id = '%s' LIMIT 1",
		strings.Join(accountFields, ", "),
		escapeSoql(id),
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by id %s", id))
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
