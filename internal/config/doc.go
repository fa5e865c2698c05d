// Package config holds denatd's settings: built-in defaults, an optional HCL
// file, and validation.
//
// Command-line options are applied on top of the loaded file by package cmd.
// A file looks like:
//
//	listen         = "::"
//	port           = 9797
//	protocol       = 255
//	prefix_lengths = [48, 56, 60]
//	prefix_source  = "netlink"
//
//	syslog {
//	  host     = "192.0.2.10"
//	  protocol = "udp"
//	}
package config
