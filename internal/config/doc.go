// Package config provides configuration parsing for stakeview.
//
// The configuration is stored in stakeview.json in the working directory.
// This package handles loading, defaults, environment overrides and
// validation.
//
// # Configuration File Structure
//
//	{
//	  "listen": ":8080",
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "node": {
//	    "network": "mainnet",
//	    "socketPath": "/ipc/node.socket",
//	    "pollInterval": "20s"
//	  },
//	  "indexer": {
//	    "url": "https://indexer.example.com",
//	    "feedUrl": "wss://indexer.example.com/feed"
//	  },
//	  "blobs": {
//	    "bucket": "pool-metadata",
//	    "prefix": "blake2b/",
//	    "region": "eu-west-1"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "stakeview"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listen:", cfg.Listen)
package config
