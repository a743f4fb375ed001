// Package ssh reaches freshly created candidate machines over SSH.
//
// A candidate counts as connected once [Client.Probe] succeeds, i.e. the
// machine accepted the session key and ran a trivial command.
package ssh
