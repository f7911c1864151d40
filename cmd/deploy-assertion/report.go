package main

import (
	"fmt"
	"io"

	"github.com/litentry/assertion-deploy/deploy"
)

// printReport writes human-readable deployment outcome. Unconfirmed
// deployment is described by the links to all related blocks.
func printReport(w io.Writer, rep deploy.Report, netCfg deploy.NetworkConfig) {
	if rep.Success {
		fmt.Fprintf(w, "Assertion contract %s is successfully deployed to '%s'\n", rep.ContractID, rep.Network)
		return
	}

	fmt.Fprintf(w, "Assertion contract %s deployment to '%s' is not confirmed\n", rep.ContractID, rep.Network)

	if len(rep.Hashes) == 0 {
		fmt.Fprintln(w, "No related blocks found")
		return
	}

	fmt.Fprintln(w, "Related blocks:")
	for i := range rep.Hashes {
		fmt.Fprintf(w, "  %s\n", netCfg.ExplorerLink(rep.Hashes[i]))
	}
}
