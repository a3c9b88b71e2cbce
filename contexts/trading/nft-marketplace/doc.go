// Package nftmarketplace contains the fixed-price NFT marketplace ledger.
//
// Listings, seller proceeds and withdrawals are orchestrated by the
// application Engine against explicit ports; the asset registry and the fund
// transfer rail stay outside the module and are reached through adapters.
package nftmarketplace
