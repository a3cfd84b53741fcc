package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"text/template"
	"time"

	"nazim/internal/models"
	"nazim/internal/repositories"

	"github.com/google/uuid"
)

// SubscriptionNotifier delivers lifecycle notifications to an organization's
// admin contact. One method per event kind; payloads are the tagged event
// structs from the models package.
type SubscriptionNotifier interface {
	SendTrialWelcome(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.TrialWelcomeEvent) error
	SendTrialEndingReminder(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.TrialEndingEvent) error
	SendRenewalReminder(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.RenewalReminderEvent) error
	SendGracePeriodStart(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.GracePeriodStartedEvent) error
	SendGracePeriodEnding(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.GracePeriodEndingEvent) error
	SendReadonlyPeriodStart(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.ReadonlyStartedEvent) error
	SendAccountSuspended(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.AccountSuspendedEvent) error
	SendSubscriptionActivated(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.SubscriptionActivatedEvent) error
	SendLimitWarning(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.LimitWarningEvent) error
	SendLimitReached(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.LimitReachedEvent) error
}

type notificationService struct {
	orgRepo      repositories.OrganizationRepository
	emailLogRepo repositories.EmailLogRepository
}

func NewNotificationService(orgRepo repositories.OrganizationRepository, emailLogRepo repositories.EmailLogRepository) SubscriptionNotifier {
	return &notificationService{
		orgRepo:      orgRepo,
		emailLogRepo: emailLogRepo,
	}
}

type templateData struct {
	OrgName            string
	TrialDays          int
	DaysLeft           int
	GracePeriodDays    int
	ReadonlyPeriodDays int
	Reason             string
	PlanName           string
	ExpiresAt          string
	Resource           string
	Current            int
	Limit              int
	Percentage         float64
}

var emailTemplates = map[string]*template.Template{
	models.EmailTrialWelcome: template.Must(template.New(models.EmailTrialWelcome).Parse(
		`Welcome to Nazim School Management System!

Your {{.TrialDays}}-day free trial for {{.OrgName}} has started.

To continue using the system after your trial, please upgrade to a paid plan.`)),
	"trial_ending": template.Must(template.New("trial_ending").Parse(
		`Your trial for {{.OrgName}} ends in {{.DaysLeft}} days.

Upgrade to a paid plan to keep all your data and continue managing your school.`)),
	"renewal_reminder": template.Must(template.New("renewal_reminder").Parse(
		`Your subscription for {{.OrgName}} expires in {{.DaysLeft}} days (on {{.ExpiresAt}}).

To ensure uninterrupted access, please renew your subscription before it expires.`)),
	models.EmailGracePeriodStart: template.Must(template.New(models.EmailGracePeriodStart).Parse(
		`IMPORTANT: Your subscription for {{.OrgName}} has expired.

You are now in a {{.GracePeriodDays}}-day grace period with full access. After it ends,
your account will enter read-only mode. Please renew to avoid any disruption.`)),
	"grace_period_ending": template.Must(template.New("grace_period_ending").Parse(
		`URGENT: The grace period for {{.OrgName}} ends in {{.DaysLeft}} days.

After that, your account will be restricted to read-only mode until you renew.`)),
	models.EmailReadonlyPeriodStart: template.Must(template.New(models.EmailReadonlyPeriodStart).Parse(
		`Your account for {{.OrgName}} is now in READ-ONLY mode.

For the next {{.ReadonlyPeriodDays}} days you can view and export your data, but not
change it. After that your account will be blocked until you renew.`)),
	models.EmailAccountSuspended: template.Must(template.New(models.EmailAccountSuspended).Parse(
		`Your account for {{.OrgName}} has been blocked.

Reason: {{.Reason}}

Your data is safe and will be available again once you renew.`)),
	models.EmailSubscriptionActivated: template.Must(template.New(models.EmailSubscriptionActivated).Parse(
		`Your subscription for {{.OrgName}} is now active.

Plan: {{.PlanName}}
Expires: {{.ExpiresAt}}`)),
	models.EmailLimitWarning: template.Must(template.New(models.EmailLimitWarning).Parse(
		`Usage warning for {{.OrgName}}: you are using {{printf "%.0f" .Percentage}}% of your {{.Resource}} limit ({{.Current}}/{{.Limit}}).

Consider upgrading your plan or removing unused records.`)),
	models.EmailLimitReached: template.Must(template.New(models.EmailLimitReached).Parse(
		`You have reached your {{.Resource}} limit of {{.Limit}} for {{.OrgName}}.

Upgrade to a higher plan or request a limit override to add more.`)),
}

func (s *notificationService) SendTrialWelcome(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.TrialWelcomeEvent) error {
	subject := "Welcome to Nazim - Trial Started"
	return s.deliver(ctx, organizationID, subscriptionID, models.EmailTrialWelcome, models.EmailTrialWelcome, subject, templateData{TrialDays: ev.TrialDays})
}

func (s *notificationService) SendTrialEndingReminder(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.TrialEndingEvent) error {
	subject := fmt.Sprintf("Your Trial Ends in %d Days", ev.DaysLeft)
	return s.deliver(ctx, organizationID, subscriptionID, models.TrialEndingReminderType(ev.DaysLeft), "trial_ending", subject, templateData{DaysLeft: ev.DaysLeft})
}

func (s *notificationService) SendRenewalReminder(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.RenewalReminderEvent) error {
	subject := fmt.Sprintf("Subscription Renewal Reminder - %d Days Left", ev.DaysBeforeExpiry)
	return s.deliver(ctx, organizationID, subscriptionID, models.RenewalReminderType(ev.DaysBeforeExpiry), "renewal_reminder", subject, templateData{
		DaysLeft:  ev.DaysBeforeExpiry,
		ExpiresAt: ev.ExpiresAt.Format(time.DateOnly),
	})
}

func (s *notificationService) SendGracePeriodStart(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.GracePeriodStartedEvent) error {
	subject := fmt.Sprintf("Subscription Expired - %d-Day Grace Period Started", ev.GracePeriodDays)
	return s.deliver(ctx, organizationID, subscriptionID, models.EmailGracePeriodStart, models.EmailGracePeriodStart, subject, templateData{GracePeriodDays: ev.GracePeriodDays})
}

func (s *notificationService) SendGracePeriodEnding(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.GracePeriodEndingEvent) error {
	subject := fmt.Sprintf("Urgent: Grace Period Ends in %d Days", ev.DaysLeft)
	return s.deliver(ctx, organizationID, subscriptionID, models.GracePeriodEndingReminderType(ev.DaysLeft), "grace_period_ending", subject, templateData{DaysLeft: ev.DaysLeft})
}

func (s *notificationService) SendReadonlyPeriodStart(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.ReadonlyStartedEvent) error {
	subject := "Account Restricted to Read-Only Mode"
	return s.deliver(ctx, organizationID, subscriptionID, models.EmailReadonlyPeriodStart, models.EmailReadonlyPeriodStart, subject, templateData{ReadonlyPeriodDays: ev.ReadonlyPeriodDays})
}

func (s *notificationService) SendAccountSuspended(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.AccountSuspendedEvent) error {
	subject := "Account Access Blocked - Action Required"
	return s.deliver(ctx, organizationID, subscriptionID, models.EmailAccountSuspended, models.EmailAccountSuspended, subject, templateData{Reason: ev.Reason})
}

func (s *notificationService) SendSubscriptionActivated(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.SubscriptionActivatedEvent) error {
	subject := fmt.Sprintf("Subscription Activated - %s", ev.PlanName)
	return s.deliver(ctx, organizationID, subscriptionID, models.EmailSubscriptionActivated, models.EmailSubscriptionActivated, subject, templateData{
		PlanName:  ev.PlanName,
		ExpiresAt: ev.ExpiresAt.Format(time.DateOnly),
	})
}

func (s *notificationService) SendLimitWarning(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.LimitWarningEvent) error {
	subject := fmt.Sprintf("Usage Warning: %s at %.0f%%", ev.Resource, ev.Percentage)
	return s.deliver(ctx, organizationID, subscriptionID, models.EmailLimitWarning, models.EmailLimitWarning, subject, templateData{
		Resource:   string(ev.Resource),
		Current:    ev.Current,
		Limit:      ev.Limit,
		Percentage: ev.Percentage,
	})
}

func (s *notificationService) SendLimitReached(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, ev models.LimitReachedEvent) error {
	subject := fmt.Sprintf("Limit Reached: %s", ev.Resource)
	return s.deliver(ctx, organizationID, subscriptionID, models.EmailLimitReached, models.EmailLimitReached, subject, templateData{
		Resource: string(ev.Resource),
		Limit:    ev.Limit,
	})
}

// deliver resolves the organization, renders the body and "sends" it. Actual
// provider integration is out of scope; delivery is logged the same way the
// rest of the platform logs outbound email, and every attempt is recorded in
// subscription_email_logs.
func (s *notificationService) deliver(ctx context.Context, organizationID uuid.UUID, subscriptionID *uuid.UUID, emailType, templateName, subject string, data templateData) error {
	org, err := s.orgRepo.GetByID(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("failed to load organization %s: %w", organizationID, err)
	}
	if org == nil {
		log.Printf("WARN: cannot send %s notification: organization %s not found", emailType, organizationID)
		return nil
	}
	if org.AdminEmail == nil || *org.AdminEmail == "" {
		log.Printf("WARN: no admin email for organization %s, skipping %s notification", organizationID, emailType)
		return nil
	}

	data.OrgName = org.Name

	tmpl, ok := emailTemplates[templateName]
	if !ok {
		return fmt.Errorf("no template registered for %q", templateName)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render %s template: %w", templateName, err)
	}

	log.Printf("[EMAIL] Org=%s, To=%s, Subject=%s", organizationID, *org.AdminEmail, subject)

	return s.emailLogRepo.Create(ctx, &models.SubscriptionEmailLog{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		SubscriptionID: subscriptionID,
		EmailType:      emailType,
		Recipient:      *org.AdminEmail,
		Subject:        subject,
		Status:         models.EmailStatusSent,
	})
}
