// Package alerts implements the rule evaluation engine and webhook delivery
// for delayboard alerting. Rules are evaluated against each freshly built
// dataset report; firing and resolved transitions are delivered to Teams,
// Slack, PagerDuty, or generic HTTP targets.
package alerts
