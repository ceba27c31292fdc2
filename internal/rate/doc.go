// Package rate implements fixed-window attempt counters in Redis for the development
// backend's login and refresh endpoints.
//
// A window starts on the first hit (INCR, then EXPIRE when the count is 1) and closes
// when the key expires. Keys are <prefix>:login:<email>, <prefix>:login-ip:<ip> and
// <prefix>:refresh:<ip>.
package rate
