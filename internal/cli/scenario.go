package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codex-k8s/scenarioctl/internal/config"
	"github.com/codex-k8s/scenarioctl/internal/provisioner"
	"github.com/codex-k8s/scenarioctl/internal/state"
)

// actions is the lifecycle surface the sequence commands drive.
type actions interface {
	create(ctx context.Context, force bool) error
	prepare(ctx context.Context, force bool) error
	converge(ctx context.Context, playbook string) error
	idempotence(ctx context.Context) error
	sideEffect(ctx context.Context) error
	verify(ctx context.Context) error
	cleanup(ctx context.Context) error
	destroy(ctx context.Context) error
	syntax(ctx context.Context) error
	check(ctx context.Context) error
}

// scenario binds one loaded scenario to its provisioner and state store.
type scenario struct {
	cfg    *config.Config
	prov   *provisioner.Ansible
	state  *state.Store
	logger *slog.Logger
}

var _ actions = (*scenario)(nil)

// begin switches the configuration to action and refreshes ansible.cfg and the inventory.
func (s *scenario) begin(action string) error {
	s.cfg.Action = action
	s.logger.Info("running action", "scenario", s.cfg.Scenario.Name, "action", action)
	return s.prov.Setup()
}

func (s *scenario) skip(action, reason string) {
	s.logger.Warn("skipping action", "scenario", s.cfg.Scenario.Name, "action", action, "reason", reason)
}

func (s *scenario) create(ctx context.Context, force bool) error {
	st, err := s.state.Load()
	if err != nil {
		return err
	}
	if st.Created && !force {
		s.skip(provisioner.ActionCreate, "instances already created")
		return nil
	}
	if err := s.begin(provisioner.ActionCreate); err != nil {
		return err
	}
	if _, err := s.prov.Create(ctx); err != nil {
		return err
	}
	return s.state.Update(func(st *state.State) {
		st.Created = true
		st.Driver = s.cfg.Driver.Name
	})
}

func (s *scenario) prepare(ctx context.Context, force bool) error {
	if !s.prov.HasPlaybook(provisioner.ActionPrepare) {
		s.skip(provisioner.ActionPrepare, "prepare playbook not configured")
		return nil
	}
	st, err := s.state.Load()
	if err != nil {
		return err
	}
	if st.Prepared && !force {
		s.skip(provisioner.ActionPrepare, "instances already prepared")
		return nil
	}
	if err := s.begin(provisioner.ActionPrepare); err != nil {
		return err
	}
	if _, err := s.prov.Prepare(ctx); err != nil {
		return err
	}
	return s.state.Update(func(st *state.State) { st.Prepared = true })
}

func (s *scenario) converge(ctx context.Context, playbook string) error {
	if err := s.begin(provisioner.ActionConverge); err != nil {
		return err
	}
	if _, err := s.prov.Converge(ctx, playbook); err != nil {
		return err
	}
	return s.state.Update(func(st *state.State) { st.Converged = true })
}

func (s *scenario) idempotence(ctx context.Context) error {
	st, err := s.state.Load()
	if err != nil {
		return err
	}
	if !st.Converged {
		return fmt.Errorf("instances not converged, run converge before idempotence")
	}
	if err := s.begin(provisioner.ActionIdempotence); err != nil {
		return err
	}
	out, err := s.prov.Converge(ctx, "")
	if err != nil {
		return err
	}
	if hosts := changedHosts(out); len(hosts) > 0 {
		return fmt.Errorf("idempotence test failed, hosts reported changes: %s", strings.Join(hosts, ", "))
	}
	s.logger.Info("idempotence completed successfully", "scenario", s.cfg.Scenario.Name)
	return nil
}

func (s *scenario) sideEffect(ctx context.Context) error {
	if !s.prov.HasPlaybook(provisioner.ActionSideEffect) {
		s.skip(provisioner.ActionSideEffect, "side effect playbook not configured")
		return nil
	}
	if err := s.begin(provisioner.ActionSideEffect); err != nil {
		return err
	}
	_, err := s.prov.SideEffect(ctx)
	return err
}

func (s *scenario) verify(ctx context.Context) error {
	if !s.prov.HasPlaybook(provisioner.ActionVerify) {
		s.skip(provisioner.ActionVerify, "verify playbook not configured")
		return nil
	}
	if err := s.begin(provisioner.ActionVerify); err != nil {
		return err
	}
	_, err := s.prov.Verify(ctx)
	return err
}

func (s *scenario) cleanup(ctx context.Context) error {
	if !s.prov.HasPlaybook(provisioner.ActionCleanup) {
		s.skip(provisioner.ActionCleanup, "cleanup playbook not configured")
		return nil
	}
	if err := s.begin(provisioner.ActionCleanup); err != nil {
		return err
	}
	_, err := s.prov.Cleanup(ctx)
	return err
}

func (s *scenario) destroy(ctx context.Context) error {
	if err := s.begin(provisioner.ActionDestroy); err != nil {
		return err
	}
	if _, err := s.prov.Destroy(ctx); err != nil {
		return err
	}
	return s.state.Reset()
}

func (s *scenario) syntax(ctx context.Context) error {
	if err := s.begin(provisioner.ActionSyntax); err != nil {
		return err
	}
	_, err := s.prov.Syntax(ctx)
	return err
}

func (s *scenario) check(ctx context.Context) error {
	if err := s.begin(provisioner.ActionCheck); err != nil {
		return err
	}
	_, err := s.prov.Check(ctx)
	return err
}
