// Package shell is the read-eval loop.
//
// Defined by
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html
//
// The loop reads its input from a script, the -c option or standard input,
// parses each line into a list of simple commands joined by ;, & and |,
// and hands the list to the executor. Before each prompt it reports on
// background jobs. A line that ends inside a quote is continued on the
// next one.
package shell
