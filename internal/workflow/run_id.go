package workflow

import "github.com/google/uuid"

var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ticket-triage/workflow-runs"))

// RunID derives the stable run id for one workflow and event identity, so every
// delivery of the same occurrence maps to the same run.
func RunID(workflowName, identity string) string {
	return uuid.NewSHA1(runNamespace, []byte(workflowName+":"+identity)).String()
}
