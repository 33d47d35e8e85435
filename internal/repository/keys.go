package repository

import "fmt"

func queuesMasterKey(cc string) string { return fmt.Sprintf("callcenter:%s:queues_master", cc) }
func agentsMasterKey(cc string) string { return fmt.Sprintf("callcenter:%s:agents_master", cc) }

func queueKey(cc, queueID string) string {
	return fmt.Sprintf("callcenter:%s:queue:%s", cc, queueID)
}

func agentKey(cc, agentID string) string {
	return fmt.Sprintf("callcenter:%s:agent:%s", cc, agentID)
}

func queueLoggedInKey(cc, queueID string) string {
	return fmt.Sprintf("callcenter:%s:queue:%s:agents_loggedIn", cc, queueID)
}

func queueCallsKey(cc, queueID string) string {
	return fmt.Sprintf("callcenter:%s:queue:%s:calls", cc, queueID)
}

func queueLastRRKey(cc, queueID string) string {
	return fmt.Sprintf("callcenter:%s:queue:%s:lastAgentRR", cc, queueID)
}
