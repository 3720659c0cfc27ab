package postgres

const (
	queryCreate = `
		INSERT INTO executions (id, user_id, room_id, language, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, user_id, room_id, language, status, output, error_message,
		          exec_time_ms, memory_used_kb, job_id, created_at, updated_at`

	querySetJobID = `
		UPDATE executions SET job_id = $2, updated_at = now()
		WHERE id = $1`

	queryUpdateStatus = `
		UPDATE executions SET status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')`

	querySaveResult = `
		UPDATE executions
		SET status = $2, output = $3, error_message = $4,
		    exec_time_ms = $5, memory_used_kb = $6, updated_at = now()
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')`

	queryGetByID = `
		SELECT id, user_id, room_id, language, status, output, error_message,
		       exec_time_ms, memory_used_kb, job_id, created_at, updated_at
		FROM executions
		WHERE id = $1`

	queryListRecent = `
		SELECT id, user_id, room_id, language, status, output, error_message,
		       exec_time_ms, memory_used_kb, job_id, created_at, updated_at
		FROM executions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	queryExists = `SELECT EXISTS (SELECT 1 FROM executions WHERE id = $1)`
)
