package rediskey

import "fmt"

const (
	SubmissionLockPrefix = "submission:lock"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSubmissionLockKey returns "submission:lock:{organizationID}:{externalID}"
func BuildSubmissionLockKey(organizationID, externalID string) string {
	return NamespaceKey(SubmissionLockPrefix, NamespaceKey(organizationID, externalID))
}
