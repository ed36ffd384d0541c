package email

const (
	subjectNewRequestFmt       = "New %s request: %s"
	subjectUrgentNewRequestFmt = "Urgent %s request: %s"
)
