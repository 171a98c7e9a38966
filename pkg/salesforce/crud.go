package salesforce

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// UpdateAccount updates an Account record with the given fields.
func UpdateAccount(ctx context.Context, c Client, accountID string, fields map[string]any) error {
	if accountID == "" {
		return eris.New("sf: account id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Account", accountID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update account %s", accountID))
	}
	return nil
}

// CreateAccount creates a new Account record and returns the new Salesforce ID.
func CreateAccount(ctx context.Context, c Client, fields map[string]any) (string, error) {
	if fields["Name"] == nil || fields["Name"] == "" {
		return "", eris.New("sf: account Name is required")
	}
	id, err := c.InsertOne(ctx, "Account", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create account")
	}
	return id, nil
}

// StageFields builds the Account field map for a pipeline position write.
// Optional values (engagement, intent, reply date) are omitted when empty.
func StageFields(stageNum int, stageName, engagement, intent string, replyDate time.Time) map[string]any {
	fields := map[string]any{
		"Pipeline_Stage__c":      stageNum,
		"Pipeline_Stage_Name__c": stageName,
	}
	if engagement != "" {
		fields["Engagement_Level__c"] = engagement
	}
	if intent != "" {
		fields["Last_Intent__c"] = intent
	}
	if !replyDate.IsZero() {
		fields["Last_Reply_Date__c"] = replyDate.Format("2006-01-02")
	}
	return fields
}

// LogReplyTask records a completed Task on the given Account so the reply
// shows up in the Salesforce activity timeline. Returns the new Task ID.
func LogReplyTask(ctx context.Context, c Client, accountID, subject, description string) (string, error) {
	if accountID == "" {
		return "", eris.New("sf: account id is required for task")
	}
	id, err := c.InsertOne(ctx, "Task", map[string]any{
		"WhatId":       accountID,
		"Subject":      subject,
		"Description":  description,
		"Status":       "Completed",
		"ActivityDate": time.Now().Format("2006-01-02"),
	})
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: log reply task for account %s", accountID))
	}
	return id, nil
}
