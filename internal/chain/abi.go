package chain

// MarketplaceABI is the ABI of the NFT marketplace contract.
const MarketplaceABI = `[
  {
    "inputs": [],
    "name": "listingCount",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "name": "listings",
    "outputs": [
      {"internalType": "address", "name": "nftContract", "type": "address"},
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"internalType": "address", "name": "seller", "type": "address"},
      {"internalType": "address", "name": "buyer", "type": "address"},
      {"internalType": "uint256", "name": "price", "type": "uint256"},
      {"internalType": "string", "name": "imageURL", "type": "string"},
      {"internalType": "bool", "name": "sold", "type": "bool"},
      {"internalType": "bool", "name": "redeemed", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "listingId", "type": "uint256"}],
    "name": "getUserSizePreferences",
    "outputs": [
      {"internalType": "string", "name": "shirtSize", "type": "string"},
      {"internalType": "string", "name": "trouserSize", "type": "string"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "listingId", "type": "uint256"}],
    "name": "buyNFT",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "nftContract", "type": "address"},
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"internalType": "uint256", "name": "price", "type": "uint256"},
      {"internalType": "string", "name": "imageURL", "type": "string"}
    ],
    "name": "listNFT",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "price", "type": "uint256"},
      {"internalType": "string", "name": "imageURL", "type": "string"}
    ],
    "name": "createAndListNFT",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "listingId", "type": "uint256"},
      {"internalType": "uint256", "name": "newPrice", "type": "uint256"}
    ],
    "name": "relistNFT",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "listingId", "type": "uint256"}],
    "name": "redeemNFT",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "listingId", "type": "uint256"},
      {"internalType": "string", "name": "shirtSize", "type": "string"},
      {"internalType": "string", "name": "trouserSize", "type": "string"}
    ],
    "name": "setSizePreferences",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

// Contract method names
const (
	MethodListingCount       = "listingCount"
	MethodListings           = "listings"
	MethodGetSizePreferences = "getUserSizePreferences"
	MethodBuy                = "buyNFT"
	MethodList               = "listNFT"
	MethodCreateAndList      = "createAndListNFT"
	MethodRelist             = "relistNFT"
	MethodRedeem             = "redeemNFT"
	MethodSetSizePreferences = "setSizePreferences"
)
