package middleware

import "context"

// WithDatasourceID tags ctx with the datasource a task belongs to.
func WithDatasourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, datasourceKey, id)
}

func DatasourceID(ctx context.Context) string {
	id, _ := ctx.Value(datasourceKey).(string)
	return id
}

// WithTeamID tags ctx with the resolved tenant.
func WithTeamID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, teamKey, id)
}

func TeamID(ctx context.Context) string {
	id, _ := ctx.Value(teamKey).(string)
	return id
}

func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskKey, id)
}

func TaskID(ctx context.Context) string {
	id, _ := ctx.Value(taskKey).(string)
	return id
}
