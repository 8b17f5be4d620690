// Package graph defines the node graph edited by the user and read by the
// shader compiler. A graph is a set of node instances kept in insertion
// order plus a list of directed connections between their sockets.
package graph
