package main

import (
	"fmt"
)

func dispatchCommand(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runMigrate(args[1:])
	case "sweep":
		return runSweep(args[1:])
	case "import-statement":
		return runImportStatement(args[1:])
	case "put-lot":
		return runPutLot(args[1:])
	case "put-member":
		return runPutMember(args[1:])
	case "token":
		return runToken(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage() {
	fmt.Println("usage: admin <command> [command flags]")
	fmt.Println("commands: migrate, sweep, import-statement, put-lot, put-member, token")
}
