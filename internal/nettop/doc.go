// Package nettop interprets the CSV stream of the nettop traffic
// accounting tool.
//
// A [Parser] classifies one line at a time as a window boundary (the
// header row the tool repeats before every sample), a per-process record,
// a per-connection row, or an ignorable line. An [Assembler] groups
// records between two boundaries into a [Window], the unit the aggregator
// applies atomically.
//
// The column layout is described by a [Schema] rather than hard-coded
// offsets: counter columns are located by header name whenever a header is
// seen, with fallback indices used until then.
//
// A typical nettop -x -L 0 sample:
//
//	time,,interface,state,bytes_in,bytes_out,...
//	10:00:01.123456,chrome.1234,,,1000,2000,...
//	10:00:01.123456,tcp4 10.0.0.2:50000<->1.1.1.1:443,en0,Established,900,1800,...
//	10:00:01.123456,kernel_task.0,,,77,12,...
package nettop
