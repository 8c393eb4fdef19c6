// Package rate throttles failed password attempts with Redis fixed-window
// counters.
//
// Each failure runs one Lua script that increments the counter and sets its
// expiry on the first hit. Checks read every relevant counter in one MGET.
// Keys:
//   - login:user:<username>
//   - login:ip:<ip>, only with EnableIPThrottle
package rate
