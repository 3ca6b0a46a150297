// Package winperf reads Windows performance counters straight from the
// registry performance data (HKEY_PERFORMANCE_DATA) using perflib, so every
// object perfmon.exe shows, including the SQLServer:* objects of a local
// SQL Server, can be sampled.  The source itself is only built on Windows.
package winperf
