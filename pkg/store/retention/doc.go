// Package retention reclaims expired credentials and their logs on a
// cron schedule, keeping the database bounded without operator action.
package retention
