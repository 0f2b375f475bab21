package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

type groupPlans struct {
	group group
	plans []plan
}

// EnumeratePlans discovers every plan reachable through the user's groups
// together with the group's drive. There is no endpoint listing plans
// directly, so plans are fetched per group. Groups without plans are dropped
// and plans whose group has no drive are rejected. The result replaces the
// client's plan catalog.
func (c *Client) EnumeratePlans(ctx context.Context) ([]GroupPlan, error) {
	groups, err := listAll[group](ctx, c, "groups?$select=id,displayName")
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	perGroup := make([]groupPlans, len(groups))

	var g errgroup.Group
	for i, grp := range groups {
		g.Go(func() error {
			plans, err := listAll[plan](ctx, c, "groups/"+escape(grp.ID)+"/planner/plans")
			if err != nil {
				c.log.Warn().Err(err).Str("group_id", grp.ID).Msg("cannot list plans for group")
				return nil
			}
			perGroup[i] = groupPlans{group: grp, plans: plans}
			return nil
		})
	}
	_ = g.Wait()

	var candidates []GroupPlan
	for _, gp := range perGroup {
		for _, p := range gp.plans {
			candidates = append(candidates, GroupPlan{
				GroupID:   gp.group.ID,
				GroupName: gp.group.DisplayName,
				PlanID:    p.ID,
				PlanName:  p.Title,
			})
		}
	}

	drives := make([]*drive, len(candidates))

	var dg errgroup.Group
	for i, cand := range candidates {
		dg.Go(func() error {
			var d drive
			if err := c.get(ctx, "groups/"+escape(cand.GroupID)+"/drive", &d); err != nil || d.ID == "" {
				c.log.Warn().Err(err).
					Str("group_id", cand.GroupID).
					Str("plan_id", cand.PlanID).
					Msg("plan rejected, group has no drive")
				return nil
			}
			drives[i] = &d
			return nil
		})
	}
	_ = dg.Wait()

	plans := make([]GroupPlan, 0, len(candidates))
	for i, cand := range candidates {
		if drives[i] == nil {
			continue
		}
		cand.DriveID = drives[i].ID
		cand.DriveName = drives[i].Name
		plans = append(plans, cand)
		c.planGroups.Set(cand.PlanID, cand.GroupID)
	}

	c.mu.Lock()
	c.plans = plans
	c.mu.Unlock()

	c.log.Info().
		Int("groups", len(groups)).
		Int("plans", len(plans)).
		Int("rejected", len(candidates)-len(plans)).
		Msg("plans discovered")

	return plans, nil
}

// SetPlans replaces the plan catalog, e.g. when restoring a session.
func (c *Client) SetPlans(plans []GroupPlan) {
	c.mu.Lock()
	c.plans = append([]GroupPlan(nil), plans...)
	c.mu.Unlock()

	for _, p := range plans {
		c.planGroups.Set(p.PlanID, p.GroupID)
	}
}

// Plans returns the plan catalog.
func (c *Client) Plans() []GroupPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]GroupPlan(nil), c.plans...)
}

// PlansLoaded reports whether EnumeratePlans has found any plans.
func (c *Client) PlansLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plans) > 0
}

func (c *Client) lookupPlan(planID string) (GroupPlan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.plans {
		if p.PlanID == planID {
			return p, true
		}
	}
	return GroupPlan{}, false
}

// planGroup resolves the group owning a plan. Lookups are cached per plan.
func (c *Client) planGroup(ctx context.Context, planID string) (string, error) {
	return c.planGroups.GetOrLoad(planID, func() (string, error) {
		var p plan
		if err := c.get(ctx, "planner/plans/"+escape(planID), &p); err != nil {
			return "", fmt.Errorf("resolve group of plan %s: %w", planID, err)
		}
		if p.GroupID() == "" {
			return "", fmt.Errorf("resolve group of plan %s: %w: container", planID, ErrMissingField)
		}
		return p.GroupID(), nil
	})
}
