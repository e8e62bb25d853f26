/*
Package restart persists and restores the four task buckets dispatch.Manager
tracks, so a killed run can resume from its last checkpoint instead of
redoing completed work.

Create writes a new bbolt database file per checkpoint (restart_<N>.dat,
N = completed count at the time of writing). Load reads one back, promoting
any Running-bucket entries to Pending since their futures cannot survive a
process restart.
*/
package restart
