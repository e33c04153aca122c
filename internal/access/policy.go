// Package access decides who may touch a ticket. The policy is two-tier:
// ticket owners always act on their own tickets, management-capable actors
// act on any ticket. What "management" means depends on the deployment mode.
package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/blockhaven/ticketd/internal/config"
	"github.com/blockhaven/ticketd/internal/directory"
	"github.com/blockhaven/ticketd/internal/domain"
)

// Policy evaluates ticket access for actors. Decisions are computed fresh on
// every call; external permission state and the operator roster can change
// between requests, so nothing here is cached.
type Policy struct {
	mode      config.Mode
	strict    bool
	adminNode string
	provider  PermissionProvider
	dir       directory.Directory
	logger    *zap.Logger
}

// NewPolicy assembles the policy for the given deployment. provider may be
// nil; an absent provider denies all strict-mode permission queries.
func NewPolicy(mode config.Mode, perms config.PermissionsConfig, provider PermissionProvider, dir directory.Directory, logger *zap.Logger) *Policy {
	return &Policy{
		mode:      mode,
		strict:    perms.Strict,
		adminNode: perms.AdminNode,
		provider:  provider,
		dir:       dir,
		logger:    logger,
	}
}

// CanAccessTicket reports whether the actor may act on the ticket: owners
// (case-insensitive identity match) always can, management always can.
func (p *Policy) CanAccessTicket(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) bool {
	if actor.Is(ticket.Sender) {
		return true
	}
	return p.CanManage(ctx, actor)
}

// CanManage reports whether the actor holds management privileges.
//
// Standalone deployments trust the session capability flag. Dedicated
// deployments consult the external permission provider when strict checking
// is on, and the operator roster otherwise. Provider and roster failures
// deny: a broken authorization backend must never widen access.
func (p *Policy) CanManage(ctx context.Context, actor domain.Actor) bool {
	if p.mode == config.ModeStandalone {
		return actor.Elevated
	}

	if p.strict {
		if p.provider == nil {
			return false
		}
		allowed, err := p.provider.HasPermission(ctx, actor.Name, p.adminNode)
		if err != nil {
			p.logger.Warn("permission provider query failed",
				zap.String("actor", actor.Name),
				zap.String("node", p.adminNode),
				zap.Error(err))
			return false
		}
		return allowed
	}

	operator, err := p.dir.IsOperator(ctx, actor.Name)
	if err != nil {
		p.logger.Warn("operator lookup failed", zap.String("actor", actor.Name), zap.Error(err))
		return false
	}
	return operator
}
