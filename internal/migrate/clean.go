package migrate

import "context"

// CleanReport counts what Clean removed.
type CleanReport struct {
	Plans          int
	TasksDeleted   int
	BucketsDeleted int
	Failures       int
}

// Clean deletes every task and then every bucket on each mapped plan. It
// cannot be undone. Failures are counted and the run continues with the
// next item.
func (o *Orchestrator) Clean(ctx context.Context) (CleanReport, error) {
	var report CleanReport

	maps := o.session.Maps()
	if len(maps) == 0 {
		return report, ErrNotMapped
	}

	for _, m := range maps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Plans++

		tasks, err := o.target.ListTaskIDs(ctx, m.PlanID)
		if err != nil {
			o.log.Error().Err(err).Str("plan_id", m.PlanID).Msg("cannot list tasks")
			report.Failures++
		}
		for _, t := range tasks {
			if err := o.target.DeleteTask(ctx, t.ID, t.ETag); err != nil {
				o.log.Error().Err(err).Str("task_id", t.ID).Msg("task delete failed")
				report.Failures++
				continue
			}
			report.TasksDeleted++
		}

		buckets, err := o.target.ListBucketIDs(ctx, m.PlanID)
		if err != nil {
			o.log.Error().Err(err).Str("plan_id", m.PlanID).Msg("cannot list buckets")
			report.Failures++
		}
		for _, b := range buckets {
			if err := o.target.DeleteBucket(ctx, b.ID, b.ETag); err != nil {
				o.log.Error().Err(err).Str("bucket_id", b.ID).Msg("bucket delete failed")
				report.Failures++
				continue
			}
			report.BucketsDeleted++
		}

		o.log.Info().Str("plan_id", m.PlanID).Int("tasks", len(tasks)).Int("buckets", len(buckets)).Msg("plan cleaned")
	}

	return report, nil
}
