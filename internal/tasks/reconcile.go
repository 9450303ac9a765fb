package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/readdon/internal/classifier"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/services"
	"github.com/desertthunder/readdon/internal/shared"
)

// ReconcileEngine converges one account's addon collection on the desired state.
type ReconcileEngine struct {
	svc        services.Service
	fetcher    services.Fetcher
	classifier *classifier.Classifier
	logger     *log.Logger
	now        func() time.Time
}

// NewReconcileEngine creates an engine. fetcher may be nil, in which case installed entries
// without a readable manifest are skipped.
func NewReconcileEngine(svc services.Service, fetcher services.Fetcher, c *classifier.Classifier, logger *log.Logger) *ReconcileEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if c == nil {
		c = classifier.New(classifier.DefaultBuiltins)
	}
	return &ReconcileEngine{svc: svc, fetcher: fetcher, classifier: c, logger: logger, now: time.Now}
}

// Plan classifies the installed addons and computes removals and installs without mutating anything.
func (e *ReconcileEngine) Plan(ctx context.Context, sess *models.Session, desired *models.DesiredState) (*models.Plan, error) {
	logger := shared.WithLogger(e.logger, "account", sess.Identifier)

	installed, err := e.svc.Addons(ctx, sess.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to list addons: %w", err)
	}

	plan := &models.Plan{}
	for _, addon := range installed {
		resolved, skip := e.resolve(ctx, addon)
		if skip != nil {
			logger.Warn("skipping unreadable addon", "url", skip.TransportURL, "reason", skip.Reason)
			plan.Skipped = append(plan.Skipped, *skip)
			continue
		}

		resolved.Class = e.classifier.Classify(resolved, desired)
		logger.Debug("classified addon", "addon", resolved.DisplayName(), "class", resolved.Class)
		plan.Classified = append(plan.Classified, resolved)
	}

	present := make(map[string]struct{})
	presentURL := make(map[string]struct{})
	for _, a := range plan.Classified {
		if a.Class == models.CustomUndesired {
			plan.Remove = append(plan.Remove, a)
			continue
		}
		present[a.Key()] = struct{}{}
		presentURL[a.TransportURL] = struct{}{}
	}
	for _, s := range plan.Skipped {
		presentURL[s.TransportURL] = struct{}{}
	}

	for _, d := range desired.Descriptors() {
		_, byKey := present[d.Key()]
		_, byURL := presentURL[d.TransportURL]
		if byKey || byURL {
			continue
		}
		plan.Install = append(plan.Install, d)
	}

	if preserved := plan.ByClass(models.PreservedVariant); len(preserved) > 0 {
		logger.Info("preserved variant addons detected", "addons", names(preserved))
	}
	return plan, nil
}

// resolve returns addon with a readable manifest, re-fetching it when the installed entry has none.
func (e *ReconcileEngine) resolve(ctx context.Context, addon models.AddonDescriptor) (models.AddonDescriptor, *models.SkippedAddon) {
	if addon.Key() != "" {
		return addon, nil
	}
	if addon.TransportURL == "" {
		return addon, &models.SkippedAddon{Reason: "entry has neither manifest id nor transport URL"}
	}
	if e.fetcher == nil {
		return addon, &models.SkippedAddon{TransportURL: addon.TransportURL, Reason: "manifest has no id"}
	}

	fetched, err := e.fetcher.Fetch(ctx, addon.TransportURL)
	if err != nil {
		return addon, &models.SkippedAddon{TransportURL: addon.TransportURL, Reason: err.Error()}
	}

	fetched.TransportURL = addon.TransportURL
	if addon.Flags != (models.Flags{}) {
		fetched.Flags = addon.Flags
	}
	return *fetched, nil
}

// Apply performs the plan's removals, then its installs, one remote call each.
//
// Item failures are recorded and never stop the remaining items. The returned error is
// non-nil only when the session is rejected, which ends the pass early.
func (e *ReconcileEngine) Apply(ctx context.Context, sess *models.Session, plan *models.Plan, prog chan<- ProgressUpdate) ([]models.ItemResult, error) {
	logger := shared.WithLogger(e.logger, "account", sess.Identifier)
	total := len(plan.Remove) + len(plan.Install)
	items := make([]models.ItemResult, 0, total)

	// A rejected session aborts before the item is recorded so a retried pass reports it once.
	record := func(op string, addon models.AddonDescriptor, err error) error {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			logger.Warn("session rejected during apply", "op", op, "addon", addon.DisplayName())
			return err
		}
		item := models.ItemResult{Op: op, Addon: addon.Ref(), Success: err == nil}
		if err != nil {
			opErr := &shared.AddonOperationError{Op: op, Addon: addon.DisplayName(), Cause: err}
			item.Error = opErr.Error()
			logger.Error("addon operation failed", "op", op, "addon", addon.DisplayName(), "error", err)
		}
		items = append(items, item)
		sendProgress(prog, addonOperationUpdate(len(items), total, sess.Identifier, item))
		return nil
	}

	for _, addon := range plan.Remove {
		err := e.svc.RemoveAddon(ctx, sess.Token, addon.Ref())
		if errors.Is(err, shared.ErrAddonNotFound) {
			logger.Debug("addon already removed", "addon", addon.DisplayName())
			err = nil
		}
		if stop := record(models.OpRemove, addon, err); stop != nil {
			return items, stop
		}
	}

	for _, addon := range plan.Install {
		err := e.svc.InstallAddon(ctx, sess.Token, addon)
		if stop := record(models.OpInstall, addon, err); stop != nil {
			return items, stop
		}
	}

	return items, nil
}

// Reconcile plans and applies in one pass and summarizes the result.
//
// With dryRun set nothing is applied; the report lists what would be removed and added.
// A session rejection is returned as an error matching [shared.ErrNotAuthenticated] together
// with the report of the work done so far.
func (e *ReconcileEngine) Reconcile(ctx context.Context, sess *models.Session, desired *models.DesiredState, dryRun bool, prog chan<- ProgressUpdate) (*models.Report, *models.Plan, error) {
	report := &models.Report{Identifier: sess.Identifier, DryRun: dryRun, Started: e.now()}

	sendProgress(prog, planUpdate(sess.Identifier))
	plan, err := e.Plan(ctx, sess, desired)
	if err != nil {
		report.Finished = e.now()
		return report, nil, err
	}

	summarizePlan(report, plan)
	logger := shared.WithLogger(e.logger, "account", sess.Identifier)

	if dryRun {
		report.Removed = refs(plan.Remove)
		report.Added = refs(plan.Install)
		report.Outcome = models.OutcomeSuccess
		report.Finished = e.now()
		logger.Info("dry run planned", "remove", len(plan.Remove), "install", len(plan.Install))
		return report, plan, nil
	}

	if plan.Empty() {
		logger.Info("no changes needed")
	}

	items, err := e.Apply(ctx, sess, plan, prog)
	report.Items = items
	finalize(report)

	if len(report.Removed) > 0 {
		logger.Info("removed addons", "addons", refNames(report.Removed))
	}
	if len(report.Added) > 0 {
		logger.Info("installed addons", "addons", refNames(report.Added))
	}
	return report, plan, err
}

// summarizePlan fills the untouched categories of a report from plan.
func summarizePlan(report *models.Report, plan *models.Plan) {
	report.Preserved = report.Preserved[:0]
	report.Kept = report.Kept[:0]
	for _, a := range plan.Classified {
		switch a.Class {
		case models.Default, models.PreservedVariant:
			report.Preserved = append(report.Preserved, a.Ref())
		case models.CustomDesired:
			report.Kept = append(report.Kept, a.Ref())
		}
	}
	report.Skipped = plan.Skipped
}

// finalize derives removed, added and the outcome from the report's items.
func finalize(report *models.Report) {
	report.Removed, report.Added = nil, nil
	failed := 0
	for _, it := range report.Items {
		switch {
		case !it.Success:
			failed++
		case it.Op == models.OpRemove:
			report.Removed = append(report.Removed, it.Addon)
		case it.Op == models.OpInstall:
			report.Added = append(report.Added, it.Addon)
		}
	}

	if failed > 0 {
		report.Outcome = models.OutcomePartialFailure
		report.Reason = fmt.Sprintf("%d of %d addon operations failed", failed, len(report.Items))
	} else {
		report.Outcome = models.OutcomeSuccess
		report.Reason = ""
	}
}

func refs(addons []models.AddonDescriptor) []models.AddonRef {
	out := make([]models.AddonRef, 0, len(addons))
	for _, a := range addons {
		out = append(out, a.Ref())
	}
	return out
}

func names(addons []models.AddonDescriptor) []string {
	out := make([]string, 0, len(addons))
	for _, a := range addons {
		out = append(out, a.DisplayName())
	}
	return out
}

func refNames(rs []models.AddonRef) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.String())
	}
	return out
}
